// cmd/vela/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"vela/internal/config"
	"vela/internal/vm"
)

const VERSION = "1.0.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		showVersion()
	case "info":
		if err := infoCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "check":
		if err := checkCommand(); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(colorize("Vela object runtime", "1;36"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vela version          show the runtime version")
	fmt.Println("  vela info [config]    show the effective runtime limits")
	fmt.Println("  vela check            run the built-in runtime self check")
}

func showVersion() {
	fmt.Printf("vela %s (built %s, commit %s)\n", VERSION, BuildDate, GitCommit)
}

func colorize(s, code string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// infoCommand prints the effective limits, from a config file when given
func infoCommand(args []string) error {
	cfg := config.Default()
	if len(args) > 0 {
		loaded, err := config.Load(args[0])
		if err != nil {
			return err
		}
		cfg = loaded
	}
	fmt.Println(colorize("runtime limits:", "1"), cfg.Summary())
	return nil
}

// checkCommand exercises the core protocols end to end and reports the result
func checkCommand() error {
	rt := vm.New()

	sum, err := rt.CallMethod(vm.NewInt(40), "+", []vm.Value{vm.NewInt(2)})
	if err != nil {
		return fmt.Errorf("dispatch check: %v", err)
	}
	if sum.Int() != 42 {
		return fmt.Errorf("dispatch check: got %d, want 42", sum.Int())
	}

	calls := 0
	cl := vm.NewClosure(vm.NewNativeFunction("tick", 1, func(rt *vm.Runtime, recv vm.Value, args []vm.Value) vm.Result {
		calls++
		return vm.Done(vm.Null())
	}))
	r := vm.ObjectValue(vm.NewRange(1, 5))
	if _, err := rt.CallMethod(r, "loop", []vm.Value{vm.ObjectValue(cl)}); err != nil {
		return fmt.Errorf("iteration check: %v", err)
	}
	if calls != 5 {
		return fmt.Errorf("iteration check: got %d calls, want 5", calls)
	}

	fmt.Println(colorize("ok", "1;32"), "runtime self check passed")
	return nil
}
