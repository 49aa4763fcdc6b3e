// Package keyring supplies vault passphrases from the environment, the OS keyring or a terminal prompt.
package keyring

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"runtime"
	"strings"

	gokeyring "github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
)

// Service is the keyring service name passphrases are stored under
const Service = "vault"

// EnvPassphrase overrides every other passphrase source
const EnvPassphrase = "VAULT_PASSPHRASE"

// Options configures the passphrase sources
type Options struct {
	UseKeyring bool
	ReadStdin  bool
	Stdin      io.Reader
	Prompt     io.Writer

	// Getenv, IsTerminal and ReadPassword default to the os/term implementations
	Getenv       func(string) string
	IsTerminal   func() bool
	ReadPassword func() ([]byte, error)
}

// SecretStore resolves passphrases: env, keyring, stdin, then an interactive prompt
type SecretStore struct {
	opts   Options
	user   string
	logger interfaces.Logger
}

// NewSecretStore creates a secret store
func NewSecretStore(opts Options, logger interfaces.Logger) *SecretStore {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Prompt == nil {
		opts.Prompt = os.Stderr
	}
	if opts.IsTerminal == nil {
		opts.IsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } //nolint:gosec // G115: fd fits in int
	}
	if opts.ReadPassword == nil {
		opts.ReadPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) } //nolint:gosec // G115: fd fits in int
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &SecretStore{opts: opts, user: keyringUsername(), logger: logger}
}

// Passphrase returns the first passphrase found; confirm asks twice on a terminal
func (s *SecretStore) Passphrase(_ context.Context, confirm bool) (string, error) {
	if p := s.opts.Getenv(EnvPassphrase); p != "" {
		s.logger.Debug("passphrase taken from environment")
		return p, nil
	}

	if s.opts.UseKeyring {
		p, err := gokeyring.Get(Service, s.user)
		switch {
		case err == nil:
			s.logger.Debug("passphrase retrieved from OS keyring")
			return p, nil
		case errors.Is(err, gokeyring.ErrNotFound):
			s.logger.Debug("no passphrase in OS keyring")
		default:
			s.logger.Warn("unable to read OS keyring", interfaces.Err(err))
		}
	}

	if s.opts.ReadStdin {
		line, err := bufio.NewReader(s.opts.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read passphrase from stdin: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", fmt.Errorf("empty passphrase on stdin: %w", entities.ErrNoPassphrase)
		}
		return line, nil
	}

	if !s.opts.IsTerminal() {
		return "", fmt.Errorf("stdin is not a terminal; set %s or use --passphrase-stdin: %w",
			EnvPassphrase, entities.ErrNoPassphrase)
	}

	p, err := s.prompt("Passphrase: ")
	if err != nil {
		return "", err
	}

	if confirm {
		again, err := s.prompt("Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", fmt.Errorf("passphrases do not match")
		}
	}

	return p, nil
}

func (s *SecretStore) prompt(label string) (string, error) {
	fmt.Fprint(s.opts.Prompt, label)
	b, err := s.opts.ReadPassword()
	fmt.Fprintln(s.opts.Prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("empty passphrase: %w", entities.ErrNoPassphrase)
	}
	return string(b), nil
}

// Persist stores the passphrase in the OS keyring
func (s *SecretStore) Persist(_ context.Context, passphrase string) error {
	if err := gokeyring.Set(Service, s.user, passphrase); err != nil {
		return fmt.Errorf("error saving passphrase in OS keyring: %w", err)
	}
	s.logger.Info("saved passphrase in OS keyring", interfaces.F("user", s.user))
	return nil
}

// Forget deletes the stored passphrase; a missing item is not an error
func (s *SecretStore) Forget(_ context.Context) error {
	err := gokeyring.Delete(Service, s.user)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("unable to delete keyring item: %w", err)
	}
	return nil
}

func keyringUsername() string {
	currentUser, err := user.Current()
	if err != nil {
		return "nobody"
	}

	u := currentUser.Username
	if runtime.GOOS == "windows" {
		if p := strings.Index(u, "\\"); p >= 0 {
			// On Windows ignore domain name.
			u = u[p+1:]
		}
	}

	return u
}
