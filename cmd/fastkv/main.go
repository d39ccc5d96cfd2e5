// Command fastkv inspects and edits a kvlog store from the command line:
// one-shot subcommands for scripting, or an interactive REPL.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/WizzXu/FastKV/config"
	"github.com/WizzXu/FastKV/internal/engine"
)

var (
	dirFlag           string
	nameFlag          string
	modeFlag          string
	configFlag        string
	internalLimitFlag int
)

func main() {
	usage := fmt.Sprintf("%s [options] [get KEY | put KEY VALUE | rm KEY | stat | gc | repl]", os.Args[0])

	pflag.StringVarP(&dirFlag, "dir", "d", "", "store directory (default: from config, or \".\")")
	pflag.StringVarP(&nameFlag, "name", "n", "", "store name (default: from config, or \"store\")")
	pflag.StringVarP(&modeFlag, "mode", "m", "", "durability mode: mmap, sync, or dual (default: from config, or mmap)")
	pflag.StringVarP(&configFlag, "config", "c", "", "path to kvlog.hujson (default: ./kvlog.hujson)")
	pflag.IntVar(&internalLimitFlag, "internal-limit", 0, "external-spill threshold in bytes (default: from config, or 4096)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fastkv - inspect and edit a kvlog store\nUsage: %s\n\n", usage)
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if err := run(pflag.Args()); err != nil {
		die("%v", err)
	}
}

func run(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return runREPL(cfg)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	switch args[0] {
	case "get":
		return cmdGet(st, args[1:])
	case "put":
		return cmdPut(st, args[1:])
	case "rm":
		return cmdRemove(st, args[1:])
	case "stat":
		return cmdStat(st)
	case "gc":
		return st.CompactNow()
	case "repl":
		return runREPLWithStore(st)
	default:
		return fmt.Errorf("fastkv: unknown subcommand %q", args[0])
	}
}

func loadConfig() (config.Config, error) {
	path := configFlag
	if path == "" {
		path = config.ConfigFileName
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if dirFlag != "" {
		cfg.Dir = dirFlag
	}

	if nameFlag != "" {
		cfg.Name = nameFlag
	}

	if modeFlag != "" {
		cfg.Mode = modeFlag
	}

	if internalLimitFlag != 0 {
		cfg.InternalLimit = internalLimitFlag
	}

	return cfg, nil
}

func modeFromString(s string) (engine.Mode, error) {
	switch s {
	case "", "mmap":
		return engine.ModeAsyncMmap, nil
	case "sync":
		return engine.ModeSyncBlocking, nil
	case "dual":
		return engine.ModeDualFile, nil
	default:
		return 0, fmt.Errorf("fastkv: unknown mode %q", s)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fastkv: "+format+"\n", args...)
	os.Exit(1)
}
