package gateways

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// ageCLIEncryptor drives the external age binary with an identity file
type ageCLIEncryptor struct {
	executor     *CommandExecutor
	binary       string
	identityFile string
	recipients   []string
}

// NewAgeCLIEncryptor creates an encryptor that shells out to binary (usually "age")
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewAgeCLIEncryptor(executor *CommandExecutor, binary, identityFile string, recipients []string) *ageCLIEncryptor {
	if binary == "" {
		binary = "age"
	}
	return &ageCLIEncryptor{
		executor:     executor,
		binary:       binary,
		identityFile: identityFile,
		recipients:   recipients,
	}
}

// Name returns the backend name
func (e *ageCLIEncryptor) Name() string {
	return string(entities.BackendAgeCLI)
}

// Format returns the X25519 format; the binary is only driven with identity files
func (e *ageCLIEncryptor) Format() string {
	return entities.FormatAgeX25519
}

// Encrypt runs age -e -i identity [-r recipient]...
func (e *ageCLIEncryptor) Encrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	args := []string{"-e", "-i", e.identityFile}
	for _, r := range e.recipients {
		args = append(args, "-r", r)
	}

	result := e.executor.Run(ctx, CommandConfig{
		Name:        e.binary,
		Args:        args,
		Stdin:       src,
		Stdout:      dst,
		Description: "age encrypt",
	})
	if !result.Success {
		return fmt.Errorf("%s encrypt failed (exit %d): %w: %s",
			e.binary, result.ExitCode, result.Error, strings.TrimSpace(result.Stderr))
	}

	return nil
}

// Decrypt runs age -d -i identity
func (e *ageCLIEncryptor) Decrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	result := e.executor.Run(ctx, CommandConfig{
		Name:        e.binary,
		Args:        []string{"-d", "-i", e.identityFile},
		Stdin:       src,
		Stdout:      dst,
		Description: "age decrypt",
	})
	if result.Success {
		return nil
	}

	stderr := strings.TrimSpace(result.Stderr)
	if strings.Contains(stderr, "no identity matched") {
		return fmt.Errorf("%w: %s", entities.ErrDecrypt, stderr)
	}

	return fmt.Errorf("%s decrypt failed (exit %d): %w: %s", e.binary, result.ExitCode, result.Error, stderr)
}
