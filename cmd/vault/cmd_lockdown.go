package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	orchestrators "github.com/gabrielkoerich/vault/internal/domain-orchestrators"
	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

func runLockdown(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("lockdown", flag.ExitOnError)
	var (
		dryRun          = fs.Bool("dry-run", false, "Print the plan without changing anything")
		keep            = fs.Bool("keep", false, "Keep the plaintext after encrypting")
		passphraseStdin = fs.Bool("passphrase-stdin", false, "Read the passphrase from the first line of stdin")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault lockdown [options]

Encrypt every configured path into the vault and remove the plaintext.

For each path:
  - Archive (tar + zstd) and hash
  - Encrypt with the configured backend
  - Verify the blob decrypts back to the same archive
  - Record it in the manifest and remove the original

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vault lockdown --dry-run
  vault lockdown
  echo "$PASS" | vault lockdown --passphrase-stdin
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}
	if fs.NArg() > 0 {
		usageError(fs, "lockdown takes no arguments; use `vault add` to configure paths")
	}

	a := mustApp()
	defer a.close()

	failed, err := executeLockdown(ctx, a, *dryRun, *keep, *passphraseStdin)
	if err != nil {
		a.close()
		fail(err)
	}
	if failed {
		a.close()
		os.Exit(1)
	}
}

func executeLockdown(ctx context.Context, a *app, dryRun, keep, passphraseStdin bool) (bool, error) {
	orch := a.lockdownOrchestrator()

	plan, manifest, err := orch.Plan(ctx)
	if err != nil {
		return false, err
	}

	if dryRun {
		displayPlan(a.out, plan)
		return false, nil
	}

	if len(plan.ToLock()) == 0 {
		displayPlan(a.out, plan)
		a.out.println("Nothing to lock.")
		return false, nil
	}

	// Ask twice only when this passphrase is about to protect an empty vault
	enc, err := a.encryptor(ctx, a.secretStore(passphraseStdin), len(manifest.Entries) == 0)
	if err != nil {
		return false, err
	}

	a.out.printf("🔒 Locking %d path(s) with %s\n\n", len(plan.ToLock()), enc.Name())

	result, err := orch.Lockdown(ctx, enc, orchestrators.LockdownOptions{Keep: keep})
	if err != nil {
		return false, err
	}

	displayLockdownResult(a.out, result, keep)
	return len(result.Failed) > 0, nil
}

func displayPlan(p *printer, plan *entities.LockPlan) {
	p.println("Lockdown plan:")
	for _, item := range plan.Items {
		if item.Action == entities.ActionLock {
			p.printf("  %s %-4s %s\n", p.ok.Sprint("lock"), item.Kind, item.Path.Path)
			continue
		}
		p.printf("  %s %s %s\n", p.dim.Sprint("skip"), item.Path.Path, p.dim.Sprintf("(%s)", item.Reason))
	}
	p.println()
}

func displayLockdownResult(p *printer, result *orchestrators.LockdownResult, keep bool) {
	for _, e := range result.Locked {
		p.printf("%s %s %s\n", p.ok.Sprint("✅"), e.Path, p.dim.Sprintf("(%s)", humanize.Bytes(uint64(e.Size)))) //nolint:gosec // G115: sizes are non-negative
	}
	for _, item := range result.Skipped {
		p.printf("⏭️  %s %s\n", item.Path.Path, p.dim.Sprintf("(%s)", item.Reason))
	}
	for _, f := range result.Failed {
		p.printf("%s %s: %v\n", p.bad.Sprint("❌"), f.Path, f.Err)
	}

	p.println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	p.printf("Locked: %d  Skipped: %d  Failed: %d  (%s)\n",
		len(result.Locked), len(result.Skipped), len(result.Failed), result.Duration.Round(time.Millisecond))
	if keep && len(result.Locked) > 0 {
		p.println(p.warn.Sprint("Plaintext was kept (--keep); the locked paths are still readable."))
	}
}
