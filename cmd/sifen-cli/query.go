package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a sender config JSON file (required)")
	format := fs.String("format", "text", "output format: text, json")
	timeout := fs.Duration("timeout", 30*time.Second, "deadline for the query")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: sifen-cli query --config config.json <cdc>\n")
	}
	_ = fs.Parse(args)

	if *configPath == "" || fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	s, cleanup, err := newSender(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sifen-cli: %v\n", err)
		return exitFail
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := s.Query(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sifen-cli: query: %v\n", err)
		return exitFail
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return exitOK
	}

	fmt.Printf("cdc: %s\nstatus: %s\nprotocol: %s\n", result.CDC, result.Status, result.Protocol)
	for _, e := range result.Errors {
		fmt.Printf("  [%d] %s\n", e.Code, e.Message)
	}
	return exitOK
}
