package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gaxoblanco/sifen-go/document"
)

type validateResult struct {
	File       string         `json:"file"`
	Valid      bool           `json:"valid"`
	Violations []violationOut `json:"violations,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type violationOut struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	format := fs.String("format", "text", "output format: text, json")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: sifen-cli validate [--format text|json] <document.json>\n")
	}
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	result := validateFile(fs.Arg(0))
	writeResult(result, *format)
	if result.Error != "" {
		return exitFail
	}
	if !result.Valid {
		return exitFail
	}
	return exitOK
}

func validateFile(path string) validateResult {
	out := validateResult{File: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		out.Error = fmt.Sprintf("parsing document: %v", err)
		return out
	}

	violations := doc.Validate()
	out.Valid = len(violations) == 0
	for _, v := range violations {
		out.Violations = append(out.Violations, violationOut{Kind: v.Kind, Path: v.Path, Message: v.Message})
	}
	return out
}

func writeResult(result validateResult, format string) {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	if result.Error != "" {
		fmt.Printf("%s: error: %s\n", result.File, result.Error)
		return
	}
	if result.Valid {
		fmt.Printf("%s: valid\n", result.File)
		return
	}
	fmt.Printf("%s: %d violation(s)\n", result.File, len(result.Violations))
	for _, v := range result.Violations {
		fmt.Printf("  [%s] %s: %s\n", v.Kind, v.Path, v.Message)
	}
}
