// Skink CLI - compiles and runs Skink programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/skink-lang/skink/config"
	"github.com/skink-lang/skink/pkg/bytecode"
	"github.com/skink-lang/skink/pkg/value"
)

func main() {
	expr := flag.String("e", "", "Evaluate an expression instead of a file")
	file := flag.String("f", "", "Program file to run (same as a positional path)")
	configPath := flag.String("c", "", "Path to a skink.toml (default: search upward from the working directory)")
	verbose := flag.Bool("v", false, "Verbose logging")
	trace := flag.Bool("trace", false, "Log every instruction as it executes")
	disasm := flag.Bool("disasm", false, "Print the compiled program instead of running it")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: skink [options] [file.sk | -]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a Skink program from a file, stdin (-), or -e.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  skink program.sk            # Run a file\n")
		fmt.Fprintf(os.Stderr, "  skink -e 'O + 1 2'          # Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  skink --disasm program.sk   # Show the compiled bytecode\n")
		fmt.Fprintf(os.Stderr, "  echo 'O \"hi\"' | skink -     # Run from stdin\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	if *trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	source, origin, err := readSource(*expr, *file, flag.Args())
	if err != nil {
		fatal(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	heap := value.NewHeap()
	prog, err := bytecode.Compile(source, origin, cfg, heap)
	if err != nil {
		fatal(err)
	}

	if *disasm {
		fmt.Print(bytecode.Disassemble(prog, heap))
		return
	}

	vm := bytecode.NewVM(prog, heap, bytecode.NewEnvironment(os.Stdout, os.Stdin), cfg)
	vm.Trace = *trace
	if _, err := vm.Run(); err != nil {
		if status, ok := bytecode.IsQuit(err); ok {
			os.Exit(status)
		}
		fatal(err)
	}
}

// readSource resolves the program text and its origin from -e, -f, a
// positional file argument, or stdin.
func readSource(expr, file string, args []string) (string, string, error) {
	if expr != "" {
		if file != "" || len(args) > 0 {
			return "", "", fmt.Errorf("cannot combine -e with a file argument")
		}
		return expr, "<expr>", nil
	}
	path := file
	if path == "" {
		if len(args) != 1 {
			flag.Usage()
			os.Exit(2)
		}
		path = args[0]
	} else if len(args) > 0 {
		return "", "", fmt.Errorf("cannot combine -f with a positional argument")
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), path, nil
}

// loadConfig loads -c explicitly, otherwise searches upward for a
// skink.toml and falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "skink: %v\n", err)
	os.Exit(1)
}
