package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// printer writes user-facing output, colored only on a terminal
type printer struct {
	w    io.Writer
	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
	bold *color.Color
}

func newPrinter(f *os.File) *printer {
	p := &printer{
		w:    f,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}

	enabled := colorEnabled(f)
	for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func colorEnabled(f *os.File) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) stateColor(state entities.VaultState) *color.Color {
	switch state {
	case entities.StateLocked:
		return p.ok
	case entities.StatePartial:
		return p.warn
	default:
		return p.bad
	}
}

func (p *printer) statusColor(s entities.PathStatus) *color.Color {
	switch s {
	case entities.PathLocked:
		return p.ok
	case entities.PathExposed, entities.PathUnsafe:
		return p.bad
	default:
		return p.dim
	}
}

// fail prints err with a hint for well-known causes and exits 1
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	switch {
	case errors.Is(err, entities.ErrNotConfigured):
		fmt.Fprintln(os.Stderr, "Hint: run `vault init` to create the paths file")
	case errors.Is(err, entities.ErrBusy):
		fmt.Fprintln(os.Stderr, "Hint: another vault lockdown or unlock is running")
	case errors.Is(err, entities.ErrNoPassphrase):
		fmt.Fprintln(os.Stderr, "Hint: set VAULT_PASSPHRASE, use --passphrase-stdin or run in a terminal")
	case errors.Is(err, entities.ErrBackendMismatch):
		fmt.Fprintln(os.Stderr, "Hint: unlock with the backend that locked the vault before changing config.yml")
	case errors.Is(err, entities.ErrParentLocked):
		fmt.Fprintln(os.Stderr, "Hint: unlock the parent path too, or run `vault unlock` with no paths")
	}

	os.Exit(1)
}

// usageError prints msg and the command usage, then exits 2
func usageError(fs *flag.FlagSet, msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n\n", msg)
	fs.Usage()
	os.Exit(2)
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string {
	return fmt.Sprint([]string(*s))
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
