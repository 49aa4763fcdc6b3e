package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabrielkoerich/vault/internal/domain-adapters/gateways"
	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/external-adapters/filestore"
)

func runInit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var (
		mode            = fs.String("mode", "", "Key mode: identity or passphrase (default identity, passphrase for openpgp)")
		backend         = fs.String("backend", "age", "Encryption backend: age, age-cli or openpgp")
		useKeyring      = fs.Bool("keyring", false, "Store the passphrase in the OS keyring")
		passphraseStdin = fs.Bool("passphrase-stdin", false, "Read the passphrase from the first line of stdin")
		force           = fs.Bool("force", false, "Overwrite an existing config.yml (leaving keyring mode deletes the stored passphrase)")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault init [options]

Create the config directory, a paths file with commented examples and
key material.

Key modes:
  identity    a new age X25519 identity file (mode 0600), no passphrase needed
  passphrase  a passphrase from VAULT_PASSPHRASE, stdin, the OS keyring or a prompt

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  vault init
  vault init --mode passphrase --keyring
  vault init --backend openpgp
  vault init --backend age-cli
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}

	cfgMode := entities.KeyMode(*mode)
	if cfgMode == "" {
		cfgMode = entities.KeyModeIdentity
		if entities.Backend(*backend) == entities.BackendOpenPGP {
			cfgMode = entities.KeyModePassphrase
		}
	}
	if *useKeyring && cfgMode != entities.KeyModePassphrase {
		usageError(fs, "--keyring needs --mode passphrase")
	}

	a := mustApp()
	defer a.close()

	if err := executeInit(ctx, a, entities.Backend(*backend), cfgMode, *useKeyring, *passphraseStdin, *force); err != nil {
		a.close()
		fail(err)
	}
}

func executeInit(ctx context.Context, a *app, backend entities.Backend, mode entities.KeyMode, useKeyring, passphraseStdin, force bool) error {
	if a.keyStore.Exists() && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", a.keyStore.Path())
	}

	cfg := defaultKeyConfig(a.dirs)
	cfg.Backend = backend
	cfg.Mode = mode
	cfg.Keyring = useKeyring
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.out.printf("🔧 Initializing vault in %s\n\n", a.dirs.Config)

	// Leaving keyring mode must not leave the old passphrase behind
	if a.keyStore.Exists() && a.keyConfig.Keyring && !useKeyring {
		if err := a.secretStore(false).Forget(ctx); err != nil {
			return err
		}
		a.out.printf("%s Removed the passphrase from the OS keyring\n", a.out.ok.Sprint("✅"))
	}

	// Step 1: Key material
	switch mode {
	case entities.KeyModeIdentity:
		if err := ensureIdentity(a, cfg.IdentityFile); err != nil {
			return err
		}
	case entities.KeyModePassphrase:
		if useKeyring {
			a.keyConfig = cfg
			secrets := a.secretStore(passphraseStdin)
			pass, err := secrets.Passphrase(ctx, true)
			if err != nil {
				return err
			}
			if err := secrets.Persist(ctx, pass); err != nil {
				return err
			}
			a.out.printf("%s Passphrase saved in the OS keyring\n", a.out.ok.Sprint("✅"))
		} else {
			a.out.println("Passphrase mode: set VAULT_PASSPHRASE, use --passphrase-stdin, or answer the prompt on lockdown.")
		}
	}

	// Step 2: config.yml
	if err := a.keyStore.Save(cfg); err != nil {
		return err
	}
	a.out.printf("%s Wrote %s (backend %s, mode %s)\n", a.out.ok.Sprint("✅"), a.keyStore.Path(), cfg.Backend, cfg.Mode)

	// Step 3: paths file
	pathsFile := a.dirs.PathsFile()
	if _, err := os.Stat(pathsFile); errors.Is(err, os.ErrNotExist) {
		if err := filestore.WriteSecretFile(pathsFile, strings.NewReader(filestore.DefaultPathsFile)); err != nil {
			return err
		}
		a.out.printf("%s Wrote %s\n", a.out.ok.Sprint("✅"), pathsFile)
	} else {
		a.out.printf("%s Kept existing %s\n", a.out.dim.Sprint("•"), pathsFile)
	}

	a.out.printf(`
Next steps:
  vault scan --add     detect sensitive paths and add them
  vault add PATH       add a path by hand
  vault lockdown       lock everything before a call
  vault unlock         restore afterwards
`)
	return nil
}

func ensureIdentity(a *app, path string) error {
	if _, err := os.Stat(path); err == nil {
		a.out.printf("%s Kept existing identity %s\n", a.out.dim.Sprint("•"), path)
		return nil
	}

	body, recipient, err := gateways.GenerateAgeIdentity(time.Now())
	if err != nil {
		return err
	}
	if err := filestore.WriteSecretFile(path, strings.NewReader(body)); err != nil {
		return err
	}

	a.out.printf("%s Created identity %s\n", a.out.ok.Sprint("✅"), path)
	a.out.printf("   Public key: %s\n", recipient)
	a.out.println(a.out.warn.Sprint("   Back this file up: without it locked paths cannot be restored."))
	return nil
}
