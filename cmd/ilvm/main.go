// Command ilvm parses, verifies, optimizes, and runs a textual IL module
// (spec.md's component C8 entry point), mirroring wazero's own CLI
// subcommand/doMain shape: a thin flag-parsing layer around the packages
// that do the real work.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/splanck/viper-sub016/internal/heap"
	"github.com/splanck/viper-sub016/internal/interp"
	"github.com/splanck/viper-sub016/internal/ir"
	"github.com/splanck/viper-sub016/internal/iltext"
	"github.com/splanck/viper-sub016/internal/pass"
	"github.com/splanck/viper-sub016/internal/rtabi"
	"github.com/splanck/viper-sub016/internal/srcmgr"
	"github.com/splanck/viper-sub016/internal/verify"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated from main for unit testing, same convention the
// teacher's cmd/wazero uses.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdErr)
		return 1
	}
	switch args[0] {
	case "run":
		return doRun(args[1:], stdOut, stdErr)
	case "verify":
		return doVerify(args[1:], stdOut, stdErr)
	case "-h", "--help", "help":
		printUsage(stdOut)
		return 0
	default:
		fmt.Fprintf(stdErr, "unknown subcommand %q\n", args[0])
		printUsage(stdErr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: ilvm <run|verify> [flags] <file.il>")
	fmt.Fprintln(w, "  run flags: -opt O0|O1|O2|<custom> (default O0), -pipeline-file path.yaml, -dispatch table|switch|threaded, -trace off|il|source, -stats")
}

// loadModule reads and parses path, returning a diagnostic-printing
// failure on read or parse error.
func loadModule(path string, stdErr io.Writer) (*ir.Module, bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return nil, false
	}
	m, err := iltext.Parse(string(src))
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return nil, false
	}
	return m, true
}

// loadModuleWithSources is loadModule, additionally registering path
// with sources so -trace source can map instructions back to their
// originating line.
func loadModuleWithSources(path string, sources *srcmgr.Manager, stdErr io.Writer) (*ir.Module, bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return nil, false
	}
	idx := sources.AddFile(path)
	m, err := iltext.ParseFile(string(src), idx)
	if err != nil {
		fmt.Fprintln(stdErr, err)
		return nil, false
	}
	return m, true
}

func doRun(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	opt := flags.String("opt", "O0", "optimization pipeline to run before execution")
	pipelineFile := flags.String("pipeline-file", "", "YAML file defining custom pipelines beyond O0/O1/O2")
	dispatch := flags.String("dispatch", "", "dispatch strategy override (table|switch|threaded); unset reads VIPER_DISPATCH")
	trace := flags.String("trace", "off", "trace mode: off|il|source")
	stats := flags.Bool("stats", false, "print pass manager statistics after running")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stdErr, "missing path to .il file")
		return 1
	}

	sources := srcmgr.New()
	m, ok := loadModuleWithSources(flags.Arg(0), sources, stdErr)
	if !ok {
		return 1
	}
	if result := verify.Module(m); !result.OK() {
		fmt.Fprint(stdErr, result.Error())
		return 1
	}

	mgr := pass.NewManager()
	mgr.SetVerifyBetweenPasses(true)
	if *pipelineFile != "" {
		custom, err := pass.LoadPipelineFile(*pipelineFile)
		if err != nil {
			fmt.Fprintln(stdErr, err)
			return 1
		}
		for name, passes := range custom {
			if err := mgr.RegisterPipeline(name, passes); err != nil {
				fmt.Fprintln(stdErr, err)
				return 1
			}
		}
	}
	if !mgr.RunPipeline(m, *opt) {
		fmt.Fprintf(stdErr, "unknown or failing optimization pipeline %q\n", *opt)
		return 1
	}

	fn := m.FuncByName("main")
	if fn == nil {
		fmt.Fprintln(stdErr, "module has no @main function")
		return 1
	}

	if *dispatch != "" {
		os.Setenv("VIPER_DISPATCH", *dispatch)
	}
	vm := interp.NewVM(m)
	vm.Trace = parseTraceMode(*trace)
	vm.TraceWriter = stdOut
	vm.Sources = sources
	rtabi.Register(vm, func(s string) { fmt.Fprint(stdOut, s) })

	exitCode := runGuarded(vm, fn, stdErr)

	if *stats {
		fmt.Fprintf(stdOut, "%+v\n", mgr.Stats())
	}
	return exitCode
}

// runGuarded invokes vm.Run and additionally recovers a stray
// *heap.AbortError, per that type's own doc comment: a host such as this
// one is expected to catch anything the VM's own internal recovery in
// internal/interp/mem.go did not already convert into a structured trap.
func runGuarded(vm *interp.VM, fn *ir.Function, stdErr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*heap.AbortError); ok {
				fmt.Fprintln(stdErr, ae.Error())
				code = 1
				return
			}
			panic(r)
		}
	}()
	_, trap := vm.Run(fn, nil)
	if trap != nil {
		fmt.Fprintln(stdErr, trap.Diagnostic())
		return 1
	}
	return 0
}

func doVerify(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("verify", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stdErr, "missing path to .il file")
		return 1
	}
	m, ok := loadModule(flags.Arg(0), stdErr)
	if !ok {
		return 1
	}
	result := verify.Module(m)
	if !result.OK() {
		fmt.Fprint(stdErr, result.Error())
		return 1
	}
	fmt.Fprintln(stdOut, "ok")
	return 0
}

func parseTraceMode(s string) interp.TraceMode {
	switch s {
	case "il":
		return interp.TraceIL
	case "source":
		return interp.TraceSource
	default:
		return interp.TraceOff
	}
}
