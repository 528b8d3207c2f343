package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"palindrome/asm"
	"palindrome/vm"
)

var (
	debugMode  bool
	historyCap int
)

func loadFile(path string) (*vm.VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	program, labels, err := asm.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	machine := vm.NewVM()
	machine.HistoryCap = historyCap
	machine.LoadProgram(program, labels)
	return machine, nil
}

// runInteractive drives the n/r/b debug REPL: step one instruction at
// a time, honoring breakpoints on instruction index, printing state
// after each step.
func runInteractive(machine *vm.VM) int {
	fmt.Println("Commands:\n\tn or next: execute next instruction\n\tr or run: run to completion or breakpoint\n\tb <idx>: toggle breakpoint at instruction index")

	reader := bufio.NewReader(os.Stdin)
	breakpoints := make(map[int]struct{})
	running := false

	for {
		if running {
			if _, hit := breakpoints[int(machine.IP)]; hit {
				fmt.Printf("breakpoint at ip=%d\n", machine.IP)
				running = false
			}
		}

		if !running {
			fmt.Print("-> ")
			line, _ := reader.ReadString('\n')
			switch cmd := trimLine(line); {
			case cmd == "n" || cmd == "next":
				// fall through to step below
			case cmd == "r" || cmd == "run":
				running = true
				continue
			case len(cmd) > 2 && cmd[:2] == "b ":
				idx, err := strconv.Atoi(cmd[2:])
				if err != nil {
					fmt.Println("bad breakpoint index:", err)
					continue
				}
				if _, ok := breakpoints[idx]; ok {
					delete(breakpoints, idx)
				} else {
					breakpoints[idx] = struct{}{}
				}
				continue
			default:
				return 0
			}
		}

		ok, err := machine.Step()
		if err != nil {
			return handleRuntimeError(machine, err, reader)
		}
		if !ok {
			return 0
		}
		logrus.WithFields(logrus.Fields{"ip": machine.IP, "sp": machine.SP}).Info("stepped")
	}
}

// handleRuntimeError implements the runner prompt from spec.md §6: on
// a non-Halt error, 'r' reverses and continues, 'd' dumps state,
// anything else quits.
func handleRuntimeError(machine *vm.VM, runErr error, reader *bufio.Reader) int {
	if runErr == vm.ErrHalt {
		return 0
	}

	logrus.WithError(runErr).Error("instruction failed")

	for {
		fmt.Print("[r]everse, [d]ump, or quit? ")
		line, _ := reader.ReadString('\n')
		switch trimLine(line) {
		case "r":
			if err := machine.ReverseLast(); err != nil {
				fmt.Println("reverse failed:", err)
				return 1
			}
			runErr = machine.Run()
			if runErr == nil || runErr == vm.ErrHalt {
				return 0
			}
			logrus.WithError(runErr).Error("instruction failed")
		case "d":
			spew.Dump(machine.Registers)
			fmt.Printf("ip=%d sp=%d fp=%d\n", machine.IP, machine.SP, machine.FP)
		default:
			return 1
		}
	}
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func runFile(cmd *cobra.Command, args []string) {
	machine, err := loadFile(args[0])
	if err != nil {
		logrus.WithError(err).Error("load failed")
		os.Exit(1)
	}

	if debugMode {
		os.Exit(runInteractive(machine))
	}

	// The interpreter's hot loop allocates small per-instruction
	// objects (History Frame snapshots, trail entries, read buffers)
	// that stay live on the history and trail; disabling GC during Run
	// avoids paying for collections that would find little to free.
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	runErr := machine.Run()
	if runErr == nil || runErr == vm.ErrHalt {
		os.Exit(0)
	}

	if !isTerminal() {
		logrus.WithError(runErr).Error("execution failed")
		os.Exit(1)
	}
	os.Exit(handleRuntimeError(machine, runErr, bufio.NewReader(os.Stdin)))
}

func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func asmFile(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		logrus.WithError(err).Error("read failed")
		os.Exit(1)
	}
	program, labels, err := asm.Parse(string(data))
	if err != nil {
		logrus.WithError(err).Error("assemble failed")
		os.Exit(1)
	}
	fmt.Printf("%d instructions, %d labels\n", len(program), len(labels))
	spew.Dump(labels)
}

func dumpFile(cmd *cobra.Command, args []string) {
	machine, err := loadFile(args[0])
	if err != nil {
		logrus.WithError(err).Error("load failed")
		os.Exit(1)
	}
	spew.Dump(machine.Symbols)
	for _, seg := range machine.Tape.ListSegments() {
		fmt.Printf("segment %-8s start=%-10d size=%-10d kind=%s\n", seg.Name, seg.Start, seg.Size, seg.Kind)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pvmr",
		Short: "Palindrome reversible VM runner",
		Long:  "pvmr assembles and runs Palindrome reversible-VM programs.",
		Args:  cobra.ExactArgs(1),
		Run:   runFile,
	}

	runCmd := &cobra.Command{
		Use:   "run <file.pvm>",
		Short: "Assemble and run a program",
		Args:  cobra.ExactArgs(1),
		Run:   runFile,
	}

	asmCmd := &cobra.Command{
		Use:   "asm <file.pvm>",
		Short: "Assemble a program and report instruction/label counts",
		Args:  cobra.ExactArgs(1),
		Run:   asmFile,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <file.pvm>",
		Short: "Load a program and dump its symbol table and segments",
		Args:  cobra.ExactArgs(1),
		Run:   dumpFile,
	}

	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "step interactively with breakpoints")
	rootCmd.PersistentFlags().IntVar(&historyCap, "history-cap", 0, "bound the number of retained history frames (0 = unbounded)")

	rootCmd.AddCommand(runCmd, asmCmd, dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
