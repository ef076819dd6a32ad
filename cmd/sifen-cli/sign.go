package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gaxoblanco/sifen-go/config"
	"github.com/gaxoblanco/sifen-go/document"
	"github.com/gaxoblanco/sifen-go/sender"
)

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a sender config JSON file (required)")
	outPath := fs.String("out", "", "write the signed DE XML here instead of stdout")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: sifen-cli sign --config config.json <document.json>\n")
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

	cdcValue, signedXML, err := s.Sign(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sifen-cli: sign: %v\n", err)
		return exitFail
	}

	fmt.Fprintf(os.Stderr, "cdc: %s\n", cdcValue)
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(signedXML), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "sifen-cli: writing %s: %v\n", *outPath, err)
			return exitFail
		}
		return exitOK
	}
	fmt.Println(signedXML)
	return exitOK
}

func loadDocument(path string) (*document.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}

func loadConfig(path string) (*config.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.ParseJSON(raw)
}

func newSender(configPath string) (*sender.Sender, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}
	s, err := sender.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building sender: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}
