package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/panaderia/internal/platform/db"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `panctl migrate

  Applies every embedded migration not yet recorded in schema_migrations.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	applied, err := db.Migrate(ctx, e.pool, e.logger)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if len(applied) == 0 {
		fmt.Println("database is up to date")
		return subcommands.ExitSuccess
	}
	for _, name := range applied {
		fmt.Println("applied", name)
	}
	return subcommands.ExitSuccess
}
