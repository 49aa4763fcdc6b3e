package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	yamlv3 "gopkg.in/yaml.v3"

	orchestrators "github.com/gabrielkoerich/vault/internal/domain-orchestrators"
	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

func runScan(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var roots stringList
	fs.Var(&roots, "root", "Directory to scan (repeatable, default from scan.yml)")
	var (
		configPath = fs.String("config", "", "Scan configuration file")
		add        = fs.Bool("add", false, "Append new candidates to the paths file")
		format     = fs.String("format", "text", "Output format: text, yaml or json")
		minScore   = fs.Int("min-score", 30, "Hide candidates scoring below this")
		noContent  = fs.Bool("no-content", false, "Skip searching file contents")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault scan [options]

Auto-detect sensitive paths and rank them by score.

Performs:
  - Well-known location checks (~/.ssh, ~/.gnupg, ...)
  - File and directory name matching
  - Content search for private keys and tokens

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vault scan
  vault scan --root ~/work --min-score 50
  vault scan --add
  vault scan --format json --no-content
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}

	switch *format {
	case "text", "yaml", "json":
	default:
		usageError(fs, fmt.Sprintf("unknown format %q", *format))
	}
	if *minScore < 0 || *minScore > entities.MaxCandidateScore {
		usageError(fs, fmt.Sprintf("--min-score must be between 0 and %d", entities.MaxCandidateScore))
	}

	a := mustApp()
	defer a.close()

	if err := executeScan(ctx, a, roots, *configPath, *format, *minScore, *noContent, *add); err != nil {
		a.close()
		fail(err)
	}
}

func executeScan(ctx context.Context, a *app, roots []string, configPath, format string, minScore int, noContent, add bool) error {
	cfg, source, err := a.scanConfigRepository().Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to load scan config: %w", err)
	}
	a.logger.Debug("loaded scan config", interfaces.F("source", source))

	if len(roots) > 0 {
		cfg.Roots = cfg.Roots[:0]
		for _, r := range roots {
			root, err := services.ExpandPath(r, a.home, os.LookupEnv)
			if err != nil {
				return fmt.Errorf("invalid --root: %w", err)
			}
			cfg.Roots = append(cfg.Roots, root)
		}
	}

	paths := a.pathsFile()
	configured, err := paths.Load(ctx)
	if err != nil && !errors.Is(err, entities.ErrNotConfigured) {
		return err
	}

	result, err := a.scanOrchestrator().Run(ctx, cfg, orchestrators.ScanOptions{
		MinScore:   minScore,
		NoContent:  noContent,
		Prune:      a.dirs.Prune(),
		Configured: configured,
	})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Candidates); err != nil {
			return fmt.Errorf("failed to encode candidates: %w", err)
		}
	case "yaml":
		enc := yamlv3.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(result.Candidates); err != nil {
			return fmt.Errorf("failed to encode candidates: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode candidates: %w", err)
		}
	default:
		displayScanResults(a.out, result, source, cfg.Roots)
	}

	if !add {
		return nil
	}

	fresh := result.New()
	raws := make([]string, 0, len(fresh))
	for _, c := range fresh {
		raws = append(raws, c.Path)
	}

	added, err := paths.Add(ctx, raws)
	if err != nil {
		return fmt.Errorf("failed to update paths file: %w", err)
	}

	// Keep machine-readable stdout clean
	w := a.out
	if format != "text" {
		w = newPrinter(os.Stderr)
	}
	if len(added) == 0 {
		w.printf("\nNothing new to add to %s\n", paths.Path())
		return nil
	}
	w.printf("\n%s Added %d path(s) to %s\n", w.ok.Sprint("✅"), len(added), paths.Path())
	for _, sp := range added {
		w.printf("  + %s\n", sp.Raw)
	}
	return nil
}

func displayScanResults(p *printer, result *orchestrators.ScanResult, source string, roots []string) {
	p.printf("🔍 Scanned %s (config: %s)\n\n", strings.Join(roots, ", "), source)

	if len(result.Candidates) == 0 {
		p.println("No sensitive paths found.")
	}

	for _, c := range result.Candidates {
		marker := "  "
		if c.Configured {
			marker = p.ok.Sprint("✓ ")
		}
		p.printf("%s%s %-4s %s\n", marker, scoreColor(p, c.Score).Sprintf("%3d", c.Score), c.Kind, p.bold.Sprint(c.Path))
		p.printf("  %s\n", p.dim.Sprint("    "+strings.Join(c.Reasons, ", ")))
	}

	p.println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	p.printf("%d candidate(s), %d new · %s dirs, %s files walked, %s searched in %s\n",
		len(result.Candidates), len(result.New()),
		humanize.Comma(int64(result.DirsVisited)),
		humanize.Comma(int64(result.FilesVisited)),
		humanize.Comma(int64(result.FilesSearched)),
		result.Duration.Round(time.Millisecond))

	if n := len(result.New()); n > 0 {
		p.printf("Run `vault scan --add` to add %d new path(s), or `vault add PATH` for specific ones.\n", n)
	}
}

func scoreColor(p *printer, score int) *color.Color {
	switch {
	case score >= 80:
		return p.bad
	case score >= 50:
		return p.warn
	default:
		return p.dim
	}
}
