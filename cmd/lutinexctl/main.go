// Command lutinexctl runs administrative tasks against the game database.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var envFile = flag.String("env", ".env", "path to an optional .env file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&migrateCmd{}, "database")
	commander.Register(&seedCmd{}, "database")
	commander.Register(&advanceCmd{}, "game")
	commander.Register(&payDividendsCmd{}, "game")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
