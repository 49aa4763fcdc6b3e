package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	orchestrators "github.com/gabrielkoerich/vault/internal/domain-orchestrators"
	"github.com/gabrielkoerich/vault/internal/domain/services"
)

func runUnlock(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	var paths stringList
	fs.Var(&paths, "path", "Locked path to restore (repeatable, default all)")
	var (
		passphraseStdin = fs.Bool("passphrase-stdin", false, "Read the passphrase from the first line of stdin")
		force           = fs.Bool("force", false, "Replace paths that exist again")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault unlock [options]

Decrypt and restore locked paths. Each blob is verified against the
manifest before and after decryption.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vault unlock
  vault unlock --path ~/.ssh
  vault unlock --path ~/.config/solana --force
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}
	paths = append(paths, fs.Args()...)

	a := mustApp()
	defer a.close()

	failed, err := executeUnlock(ctx, a, paths, *passphraseStdin, *force)
	if err != nil {
		a.close()
		fail(err)
	}
	if failed {
		a.close()
		os.Exit(1)
	}
}

func executeUnlock(ctx context.Context, a *app, raws []string, passphraseStdin, force bool) (bool, error) {
	paths := make([]string, 0, len(raws))
	for _, raw := range raws {
		p, err := services.ExpandPath(raw, a.home, os.LookupEnv)
		if err != nil {
			return false, err
		}
		paths = append(paths, p)
	}

	orch := a.lockdownOrchestrator()

	// Check the selection before asking for a passphrase
	selected, err := orch.Select(ctx, paths)
	if err != nil {
		return false, err
	}
	if len(selected) == 0 {
		a.out.println("Nothing is locked.")
		return false, nil
	}

	enc, err := a.encryptor(ctx, a.secretStore(passphraseStdin), false)
	if err != nil {
		return false, err
	}

	result, err := orch.Unlock(ctx, enc, orchestrators.UnlockOptions{Paths: paths, Force: force})
	if err != nil {
		return false, err
	}

	for _, e := range result.Restored {
		a.out.printf("%s %s\n", a.out.ok.Sprint("🔓"), e.Path)
	}
	for _, f := range result.Failed {
		a.out.printf("%s %s: %v\n", a.out.bad.Sprint("❌"), f.Path, f.Err)
	}

	a.out.println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	a.out.printf("Restored: %d  Failed: %d  (%s)\n", len(result.Restored), len(result.Failed), result.Duration.Round(time.Millisecond))

	return len(result.Failed) > 0, nil
}
