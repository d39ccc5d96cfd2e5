package main

import (
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return replHistoryFile
	}

	return filepath.Join(home, replHistoryFile)
}

func loadHistory() (*os.File, error) {
	return os.Open(historyPath())
}

func saveHistory(line *liner.State) {
	f, err := os.Create(historyPath())
	if err != nil {
		return
	}
	defer f.Close()

	line.WriteHistory(f)
}
