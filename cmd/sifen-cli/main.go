// Command sifen-cli validates, signs, sends, and queries SIFEN electronic
// documents from the command line.
//
// Grounded on speedata-einvoice's cmd/einvoice: a subcommand dispatcher in
// main.go with one flag.FlagSet per subcommand file, fixed exit codes, and
// a --format text/json output switch.
package main

import (
	"fmt"
	"os"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	subcommand, rest := args[0], args[1:]
	switch subcommand {
	case "validate":
		return runValidate(rest)
	case "sign":
		return runSign(rest)
	case "send":
		return runSend(rest)
	case "query":
		return runQuery(rest)
	default:
		fmt.Fprintf(os.Stderr, "sifen-cli: unknown command %q\n", subcommand)
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: sifen-cli <command> [options]

Commands:
  validate   Check a document JSON file against SIFEN's structural rules
  sign       Validate, assign a CDC, and sign a document without sending it
  send       Validate, sign, and submit a document to SET
  query      Look up a document's current status by CDC

Use "sifen-cli <command> --help" for the flags a command accepts.
`)
}
