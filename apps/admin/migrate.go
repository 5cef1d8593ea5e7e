package main

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/paperdesk/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

// migrate runs a goose command against the embedded migrations.
func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return gooseRunFunc(ctx, args[0], cli.db, database.MigrationsDir, args[1:]...)
}
