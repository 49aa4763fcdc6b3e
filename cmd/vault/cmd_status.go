package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	orchestrators "github.com/gabrielkoerich/vault/internal/domain-orchestrators"
)

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text or json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault status [options]

Show whether configured paths are locked.

States:
  unlocked  nothing is in the vault
  locked    every configured path that exists is in the vault
  partial   some configured paths are still readable

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vault status
  vault status --format json
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}
	if *format != "text" && *format != "json" {
		usageError(fs, fmt.Sprintf("unknown format %q", *format))
	}

	a := mustApp()
	defer a.close()

	report, err := a.lockdownOrchestrator().Status(ctx)
	if err != nil {
		a.close()
		fail(err)
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			a.close()
			fail(fmt.Errorf("failed to encode status: %w", err))
		}
		return
	}

	displayStatus(a.out, report, a.dirs.PathsFile())
}

func displayStatus(p *printer, report *orchestrators.StatusReport, pathsFile string) {
	p.printf("Vault: %s", p.stateColor(report.State).Sprint(string(report.State)))
	if report.Backend != "" {
		p.printf(" %s", p.dim.Sprintf("(%s)", report.Backend))
	}
	p.println()

	if !report.Configured {
		p.printf("%s %s does not exist; run `vault init`\n", p.warn.Sprint("⚠️ "), pathsFile)
	}
	if !report.UpdatedAt.IsZero() {
		p.printf("Last change: %s\n", humanize.Time(report.UpdatedAt))
	}
	p.println()

	for _, item := range report.Items {
		label := p.statusColor(item.Status).Sprintf("%-8s", item.Status)
		detail := ""
		switch {
		case item.Entry != nil:
			//nolint:gosec // G115: sizes are non-negative
			detail = fmt.Sprintf("%s, %s", humanize.Bytes(uint64(item.Entry.Size)), humanize.Time(item.Entry.LockedAt))
		case item.LockedBy != "":
			detail = "inside " + item.LockedBy
		}
		if !item.Configured {
			if detail != "" {
				detail += ", "
			}
			detail += "not in paths file"
		}

		p.printf("  %s %s", label, item.Path)
		if detail != "" {
			p.printf(" %s", p.dim.Sprintf("(%s)", detail))
		}
		p.println()
	}

	for _, orphan := range report.Orphans {
		p.printf("%s blob %s is not referenced by the manifest\n", p.warn.Sprint("⚠️ "), orphan)
	}
}
