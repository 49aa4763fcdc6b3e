package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

func runAdd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault add PATH...

Append paths to the paths file. Paths under your home directory are
written as $HOME/... so the file stays portable.

Examples:
  vault add ~/.ssh
  vault add '$HOME/.config/solana' ~/wallets
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		usageError(fs, "at least one PATH is required")
	}

	a := mustApp()
	defer a.close()

	paths := a.pathsFile()
	added, err := paths.Add(ctx, fs.Args())
	if err != nil {
		a.close()
		fail(err)
	}

	if len(added) == 0 {
		a.out.println("Already configured.")
		return
	}
	for _, sp := range added {
		a.out.printf("%s %s %s\n", a.out.ok.Sprint("+"), sp.Raw, a.out.dim.Sprintf("(%s)", sp.Path))
	}
	a.out.printf("Updated %s\n", paths.Path())
}

func runRemove(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault remove PATH...

Remove paths from the paths file. Locked paths stay in the vault until
you unlock them.

Examples:
  vault remove ~/.private
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		usageError(fs, "at least one PATH is required")
	}

	a := mustApp()
	defer a.close()

	paths := a.pathsFile()
	removed, err := paths.Remove(ctx, fs.Args())
	if err != nil {
		a.close()
		fail(err)
	}

	if removed == 0 {
		a.out.println("No matching paths.")
		return
	}
	a.out.printf("Removed %d line(s) from %s\n", removed, paths.Path())
}

func runList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: vault list

Show the configured paths and what they expand to.
`)
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}

	a := mustApp()
	defer a.close()

	paths := a.pathsFile()
	list, err := paths.Load(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrNotConfigured) {
			a.out.printf("%s does not exist; run `vault init` or `vault add PATH`\n", paths.Path())
			return
		}
		a.close()
		fail(err)
	}

	a.out.printf("Paths in %s (%d total):\n\n", paths.Path(), len(list))
	for _, sp := range list {
		if sp.Raw == sp.Path {
			a.out.printf("  %s\n", sp.Path)
			continue
		}
		a.out.printf("  %-32s %s\n", sp.Raw, a.out.dim.Sprint(sp.Path))
	}
}
