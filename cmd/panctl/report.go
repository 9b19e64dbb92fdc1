package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/odyssey-erp/panaderia/internal/currency"
	"github.com/odyssey-erp/panaderia/internal/reports"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

const formatMarkdown = "md"

type reportCmd struct {
	period string
	date   string
	format string
	output string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the weekly or monthly closing report" }
func (*reportCmd) Usage() string {
	return `panctl report [-p week|month] [-d <YYYY-MM-DD>] [-f md|csv|xlsx] [-o <file>]

  Summarises the closed shifts of the week or month containing the date
  (defaults to today in the business timezone).
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "p", "week", "period: week or month")
	f.StringVar(&c.date, "d", "", "reference date (defaults to today)")
	f.StringVar(&c.format, "f", formatMarkdown, "output format: md, csv or xlsx")
	f.StringVar(&c.output, "o", "", "write to file instead of stdout")
}

// validate normalises the flags before any connection is opened.
func (c *reportCmd) validate() (shared.PeriodKind, string, error) {
	kind, err := shared.ParsePeriodKind(c.period)
	if err != nil {
		return "", "", err
	}
	format := strings.ToLower(strings.TrimSpace(c.format))
	if format == formatMarkdown {
		return kind, format, nil
	}
	format, err = reports.ParseFormat(format)
	if err != nil {
		return "", "", err
	}
	if format == reports.FormatXLSX && c.output == "" {
		return "", "", fmt.Errorf("%w: xlsx output needs -o", shared.ErrValidation)
	}
	return kind, format, nil
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	kind, format, err := c.validate()
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	calendar, err := e.cfg.Calendar()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	service := reports.NewService(reports.NewRepository(e.pool), nil, calendar, e.logger)
	ref, err := service.ParseDate(c.date)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	report, err := service.PeriodReport(ctx, kind, ref)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	var out io.Writer = os.Stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		out = file
	}
	if err := writeReport(out, report, format, e.cfg.Money(), c.output == ""); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeReport(w io.Writer, report reports.PeriodReport, format string, money currency.Formatter, terminal bool) error {
	switch format {
	case reports.FormatCSV:
		return reports.WritePeriodCSV(w, report, money)
	case reports.FormatXLSX:
		return reports.WritePeriodXLSX(w, report, money)
	}
	md := reports.RenderPeriodMarkdown(report, money)
	if terminal {
		md = renderMarkdown(md)
	}
	_, err := io.WriteString(w, md)
	return err
}

// renderMarkdown styles md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
