package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/reports"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
	"github.com/odyssey-erp/panaderia/internal/users"
)

type seedAdminCmd struct {
	username string
	name     string
}

func (*seedAdminCmd) Name() string     { return "seed-admin" }
func (*seedAdminCmd) Synopsis() string { return "create or reset an administrator account" }
func (*seedAdminCmd) Usage() string {
	return `panctl seed-admin [-u <username>] [-n <name>]

  Creates the administrator, or resets its password and reactivates it.
  The password is read from PANADERIA_ADMIN_PASSWORD.
`
}

func (c *seedAdminCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "admin", "administrator username")
	f.StringVar(&c.name, "n", "Administrador", "display name")
}

func (c *seedAdminCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	password := os.Getenv("PANADERIA_ADMIN_PASSWORD")
	if password == "" {
		fail(errors.New("PANADERIA_ADMIN_PASSWORD must be set"))
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	service := users.NewService(users.NewRepository(e.pool), shared.NewAuditLogger(e.pool), e.logger)
	user, created, err := service.EnsureAdmin(ctx, c.username, c.name, password)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if created {
		fmt.Printf("created administrator %s (%s)\n", user.Username, user.ID)
	} else {
		fmt.Printf("reset administrator %s (%s)\n", user.Username, user.ID)
	}
	return subcommands.ExitSuccess
}

type resetCmd struct {
	as      string
	confirm bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete every shift with its sales and expenses" }
func (*resetCmd) Usage() string {
	return `panctl reset -as <admin username> -confirm

  Purges the whole shift history. Users, catalog and pricing are kept.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.as, "as", "", "administrator performing the reset")
	f.BoolVar(&c.confirm, "confirm", false, "confirm the purge")
}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.confirm || c.as == "" {
		fail(errors.New("reset needs -as and -confirm"))
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, true)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	admin, err := users.NewRepository(e.pool).GetByUsername(ctx, strings.ToLower(strings.TrimSpace(c.as)))
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	calendar, err := e.cfg.Calendar()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	audit := shared.NewAuditLogger(e.pool)
	config := panconfig.NewService(panconfig.NewRepository(e.pool), audit, e.cfg.DefaultPanConfig())
	service := shifts.NewService(shifts.NewRepository(e.pool), config, audit, shifts.ServiceConfig{
		Calendar: calendar,
		Events:   reports.NewCache(e.redis, e.cfg.ReportCacheTTL, e.logger),
		Logger:   e.logger,
	})
	result, err := service.ResetHistory(ctx, admin.Actor())
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("removed %d shifts, %d sales, %d sale items, %d expenses\n", result.Shifts, result.Sales, result.SaleItems, result.Expenses)
	return subcommands.ExitSuccess
}
