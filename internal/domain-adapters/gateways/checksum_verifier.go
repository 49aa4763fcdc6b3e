// Package gateways implements the filesystem, archive and encryption adapters used by the orchestrators.
package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	gatewayports "github.com/gabrielkoerich/vault/internal/domain/interfaces/gateways"
)

// checksumVerifier implements checksum verification using pure Go
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// VerifyChecksum verifies a file's SHA256 checksum, mismatches wrap entities.ErrCorrupt
func (v *checksumVerifier) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	actualSum, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	if actualSum != expectedSum {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s: %w",
			filePath, expectedSum, actualSum, entities.ErrCorrupt)
	}

	return nil
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (v *checksumVerifier) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is a vault blob path
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	sum, _, err := HashReader(f)
	return sum, err
}

// HashReader drains r and returns its hex SHA256 and length
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashWriter returns a HashingWriter over w
func (v *checksumVerifier) HashWriter(w io.Writer) gatewayports.HashingWriter {
	return NewHashingWriter(w)
}

// HashingWriter hashes and counts everything written through it
type HashingWriter struct {
	w     io.Writer
	h     hashState
	count int64
}

type hashState interface {
	io.Writer
	Sum(b []byte) []byte
}

// NewHashingWriter wraps w; pass io.Discard to only hash
func NewHashingWriter(w io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: sha256.New()}
}

func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n]) //nolint:errcheck // hash writes never fail
	hw.count += int64(n)
	return n, err
}

// Sum returns the hex SHA256 of the bytes written so far
func (hw *HashingWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

// Count returns the number of bytes written so far
func (hw *HashingWriter) Count() int64 {
	return hw.count
}
