package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nhle/shipdesk-notify/internal/model"
)

const usage = `shipdesk: shipment and payout notifications in the terminal

Usage:
  shipdesk <command> [flags]

Commands:
  login    store credentials and the signed-in user
  logout   forget credentials and the local cache
  inbox    interactive notification inbox
  watch    print notifications as they arrive
  send     send a notification (admin)

Run 'shipdesk <command> --help' for command flags.
`

type command func(args []string, stdout io.Writer) error

var commands = map[string]command{
	"login":  runLogin,
	"logout": runLogout,
	"inbox":  runInbox,
	"watch":  runWatch,
	"send":   runSend,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		args = []string{"inbox"}
	}

	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}

	if err := cmd(args[1:], stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "shipdesk %s: %v\n", name, err)
		return 1
	}
	return 0
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(configPath, "config", "c", model.DefaultConfigPath(), "path to the config file")
	return fs
}
