package sdm

import (
	"fmt"
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// StorageTier names a physical backend kind a StorageLocation can
// point into. Network/S3 tiers are declared per the source's own
// backend enum but have no implementation here — they return
// errUnsupportedTier if ever addressed.
type StorageTier int

const (
	TierMemory StorageTier = iota
	TierFile
	TierNetwork
	TierS3
)

// StorageLocation addresses a page within a specific backend.
type StorageLocation struct {
	Tier     StorageTier
	FileID   int
	Offset   int64
	MemoryID int64
}

// MemoryBackend is a simple in-process byte-slice cache, the "DRAM
// tier" of the source's SdmTape.
type MemoryBackend struct {
	pages map[int64][]byte
}

func newMemoryBackend() *MemoryBackend {
	return &MemoryBackend{pages: make(map[int64][]byte)}
}

func (m *MemoryBackend) read(id int64, size int) ([]byte, error) {
	data, ok := m.pages[id]
	if !ok {
		return make([]byte, size), nil
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

func (m *MemoryBackend) write(id int64, data []byte) error {
	m.pages[id] = append([]byte(nil), data...)
	return nil
}

// FileBackend memory-maps a fixed-size backing file per spec.md §6's
// "tape_%08d.dat" naming convention, growing it as new file IDs are
// addressed.
type FileBackend struct {
	dir   string
	files map[int]mmap.MMap
	osf   map[int]*os.File
}

func newFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir, files: make(map[int]mmap.MMap), osf: make(map[int]*os.File)}
}

func (f *FileBackend) fileName(id int) string {
	return filepath.Join(f.dir, fmt.Sprintf("tape_%08d.dat", id))
}

// ensureOpen maps a file, extending it to at least minSize bytes if
// it is newly created.
func (f *FileBackend) ensureOpen(id int, minSize int64) error {
	if _, ok := f.files[id]; ok {
		return nil
	}
	fh, err := os.OpenFile(f.fileName(id), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open backing file %d", id)
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return errors.Wrapf(err, "stat backing file %d", id)
	}
	if info.Size() < minSize {
		if err := fh.Truncate(minSize); err != nil {
			fh.Close()
			return errors.Wrapf(err, "grow backing file %d to %d bytes", id, minSize)
		}
	}
	m, err := mmap.Map(fh, mmap.RDWR, 0)
	if err != nil {
		fh.Close()
		return errors.Wrapf(err, "mmap backing file %d", id)
	}
	f.files[id] = m
	f.osf[id] = fh
	return nil
}

func (f *FileBackend) read(loc StorageLocation, size int) ([]byte, error) {
	if err := f.ensureOpen(loc.FileID, loc.Offset+int64(size)); err != nil {
		return nil, errors.Wrapf(err, "read %d bytes at file=%d offset=%d", size, loc.FileID, loc.Offset)
	}
	m := f.files[loc.FileID]
	out := make([]byte, size)
	copy(out, m[loc.Offset:loc.Offset+int64(size)])
	return out, nil
}

func (f *FileBackend) write(loc StorageLocation, data []byte) error {
	if err := f.ensureOpen(loc.FileID, loc.Offset+int64(len(data))); err != nil {
		return errors.Wrapf(err, "write %d bytes at file=%d offset=%d", len(data), loc.FileID, loc.Offset)
	}
	m := f.files[loc.FileID]
	copy(m[loc.Offset:loc.Offset+int64(len(data))], data)
	if err := m.Flush(); err != nil {
		return errors.Wrapf(err, "flush file=%d", loc.FileID)
	}
	return nil
}

func (f *FileBackend) Close() error {
	var firstErr error
	for id, m := range f.files {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "unmap file=%d", id)
		}
		if err := f.osf[id].Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "close file=%d", id)
		}
	}
	return firstErr
}

// StorageBackends fans reads and writes out to whichever tier a
// StorageLocation names.
type StorageBackends struct {
	memory *MemoryBackend
	file   *FileBackend
}

// NewStorageBackends wires a memory tier always, and a file tier
// rooted at dir if dir is non-empty.
func NewStorageBackends(dir string) *StorageBackends {
	sb := &StorageBackends{memory: newMemoryBackend()}
	if dir != "" {
		sb.file = newFileBackend(dir)
	}
	return sb
}

var errUnsupportedTier = errors.New("sdm: unsupported storage tier")

func (sb *StorageBackends) Read(loc StorageLocation, size int) ([]byte, error) {
	switch loc.Tier {
	case TierMemory:
		return sb.memory.read(loc.MemoryID, size)
	case TierFile:
		if sb.file == nil {
			return nil, errors.Wrapf(errUnsupportedTier, "read: tier=%d has no file backend configured", loc.Tier)
		}
		return sb.file.read(loc, size)
	default:
		return nil, errors.Wrapf(errUnsupportedTier, "read: tier=%d", loc.Tier)
	}
}

func (sb *StorageBackends) Write(loc StorageLocation, data []byte) error {
	switch loc.Tier {
	case TierMemory:
		return sb.memory.write(loc.MemoryID, data)
	case TierFile:
		if sb.file == nil {
			return errors.Wrapf(errUnsupportedTier, "write: tier=%d has no file backend configured", loc.Tier)
		}
		return sb.file.write(loc, data)
	default:
		return errors.Wrapf(errUnsupportedTier, "write: tier=%d", loc.Tier)
	}
}

// Close releases any mapped files.
func (sb *StorageBackends) Close() error {
	if sb.file != nil {
		return sb.file.Close()
	}
	return nil
}
