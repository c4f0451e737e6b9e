package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sharpts/sharpts/internal/buildconfig"
	"github.com/sharpts/sharpts/internal/bytecode"
)

// sharpts is a thin driver over the library packages. The front end that
// produces typed modules is hosted out-of-process; what the binary itself
// offers is project-file validation and image inspection:
//
//	sharpts check [dir]        locate and validate sharpts.yaml
//	sharpts inspect image.bin  decode an emitted image and disassemble it
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sharpts check [dir] | sharpts inspect <image.bin>")
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path, err := buildconfig.FindConfig(dir)
	if err != nil {
		fatal(err)
	}
	if path == "" {
		fatal(fmt.Errorf("no sharpts.yaml found from %s upward", dir))
	}
	cfg, err := buildconfig.LoadConfig(path)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s: ok (entry %s, output %s, target %s)\n", path, cfg.Entry, cfg.Output, cfg.Target)
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	full := fs.Bool("full", false, "disassemble every function, not just the entry point")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	img, err := bytecode.Decode(data)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("entry point: %s\n", img.EntryPoint)
	fmt.Printf("module init order: %v\n", img.ModuleInit)
	for _, u := range img.Unions {
		fmt.Printf("union %s = %v\n", u.Name, u.Members)
	}

	names := make([]string, 0, len(img.Functions))
	for name := range img.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !*full && name != img.EntryPoint {
			continue
		}
		fn := img.Functions[name]
		fmt.Print(bytecode.Disassemble(fn.Chunk, name))
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "sharpts:", err)
	os.Exit(1)
}
