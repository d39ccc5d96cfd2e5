package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/WizzXu/FastKV/config"
	fastkv "github.com/WizzXu/FastKV"
)

const replHistoryFile = ".fastkv_history"

// runREPL opens the store and drops into an interactive session, closing
// the store on exit.
func runREPL(cfg config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return runREPLWithStore(st)
}

// runREPLWithStore drives an interactive get/put/rm/stat/gc/keys/exit
// session over an already-open store, mirroring the teacher's cmd/tk
// interactive surface but over fastkv's typed Store API.
func runREPLWithStore(st *fastkv.Store) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	if f, err := loadHistory(); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Println("fastkv REPL. Commands: get KEY | put KEY VALUE | rm KEY | keys | stat | gc | exit")

	for {
		input, err := line.Prompt("fastkv> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}

			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if handleREPLLine(st, input) {
			break
		}
	}

	saveHistory(line)

	return nil
}

// handleREPLLine executes one REPL command, reporting errors to stdout
// rather than aborting the session. It reports true when the session
// should end.
func handleREPLLine(st *fastkv.Store, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	var err error

	switch cmd {
	case "exit", "quit":
		return true
	case "get":
		err = cmdGet(st, args)
	case "put":
		err = cmdPut(st, args)
	case "rm":
		err = cmdRemove(st, args)
	case "keys":
		for _, k := range st.Keys() {
			fmt.Println(k)
		}
	case "stat":
		err = cmdStat(st)
	case "gc":
		err = st.CompactNow()
	default:
		err = fmt.Errorf("fastkv: unknown command %q", cmd)
	}

	if err != nil {
		fmt.Println("error:", err)
	}

	return false
}
