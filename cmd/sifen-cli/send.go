package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gaxoblanco/sifen-go/types"
)

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a sender config JSON file (required)")
	format := fs.String("format", "text", "output format: text, json")
	timeout := fs.Duration("timeout", 60*time.Second, "overall deadline for the send")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: sifen-cli send --config config.json <document.json>\n")
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

	doc, err := loadDocument(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sifen-cli: %v\n", err)
		return exitFail
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, sendErr := s.SendOne(ctx, doc)
	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else if result != nil {
		fmt.Printf("cdc: %s\nstatus: %s\nprotocol: %s\nattempts: %d\n", result.CDC, result.Status, result.Protocol, result.Attempts)
		for _, e := range result.Errors {
			fmt.Printf("  [%d] %s\n", e.Code, e.Message)
		}
	}
	if sendErr != nil {
		fmt.Fprintf(os.Stderr, "sifen-cli: send: %v\n", sendErr)
		return exitFail
	}
	if result != nil && result.Status == types.StatusRejected {
		return exitFail
	}
	return exitOK
}
