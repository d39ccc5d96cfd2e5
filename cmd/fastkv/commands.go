package main

import (
	"fmt"
	"strconv"

	"github.com/WizzXu/FastKV/config"
	fastkv "github.com/WizzXu/FastKV"
)

func openStore(cfg config.Config) (*fastkv.Store, error) {
	mode, err := modeFromString(cfg.Mode)
	if err != nil {
		return nil, err
	}

	opts := []fastkv.Option{fastkv.WithMode(mode)}
	if cfg.InternalLimit > 0 {
		opts = append(opts, fastkv.WithInternalLimit(cfg.InternalLimit))
	}

	return fastkv.Open(cfg.Dir, cfg.Name, opts...)
}

func cmdGet(st *fastkv.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("fastkv: get takes exactly one KEY argument")
	}

	key := args[0]

	all, err := st.GetAll()
	if err != nil {
		return err
	}

	v, ok := all[key]
	if !ok {
		fmt.Println("<absent or undecodable>")
		return nil
	}

	if b, ok := v.([]byte); ok {
		fmt.Printf("%x\n", b)
		return nil
	}

	fmt.Println(v)

	return nil
}

func cmdPut(st *fastkv.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("fastkv: put takes exactly KEY and VALUE arguments")
	}

	key, raw := args[0], args[1]

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return st.PutInt64(key, n)
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return st.PutFloat64(key, f)
	}

	if b, err := strconv.ParseBool(raw); err == nil {
		return st.PutBool(key, b)
	}

	return st.PutString(key, raw)
}

func cmdRemove(st *fastkv.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("fastkv: rm takes exactly one KEY argument")
	}

	return st.Remove(args[0])
}

func cmdStat(st *fastkv.Store) error {
	stat := st.Stat()
	fmt.Printf("keys:           %d\n", stat.LiveKeys)
	fmt.Printf("data size:      %d bytes\n", stat.DataSize)
	fmt.Printf("total capacity: %d bytes\n", stat.TotalCapacity)
	fmt.Printf("invalid bytes:  %d\n", stat.InvalidBytes)
	fmt.Printf("invalid ranges: %d\n", stat.InvalidRanges)
	fmt.Printf("as of:          %s\n", stat.At.Format("2006-01-02T15:04:05"))

	return nil
}
