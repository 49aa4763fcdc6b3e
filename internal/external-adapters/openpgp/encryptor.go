// Package openpgp provides passphrase-based OpenPGP encryption for vault blobs.
package openpgp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// errWrongPassphrase stops ReadMessage from asking for the passphrase again
var errWrongPassphrase = errors.New("passphrase rejected")

// Encryptor implements symmetric OpenPGP encryption using ProtonMail's go-crypto,
// a maintained fork of golang.org/x/crypto/openpgp
type Encryptor struct {
	passphrase []byte
	config     *packet.Config
}

// NewEncryptor creates an encryptor for the given passphrase
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty passphrase: %w", entities.ErrNoPassphrase)
	}

	return &Encryptor{
		passphrase: []byte(passphrase),
		config: &packet.Config{
			DefaultCipher:          packet.CipherAES256,
			DefaultCompressionAlgo: packet.CompressionNone,
		},
	}, nil
}

// Name returns the backend name
func (e *Encryptor) Name() string {
	return string(entities.BackendOpenPGP)
}

// Format returns the blob format
func (e *Encryptor) Format() string {
	return entities.FormatOpenPGP
}

// Encrypt writes a symmetrically encrypted OpenPGP message to dst
func (e *Encryptor) Encrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	w, err := openpgp.SymmetricallyEncrypt(dst, e.passphrase, &openpgp.FileHints{IsBinary: true}, e.config)
	if err != nil {
		return fmt.Errorf("failed to start OpenPGP encryption: %w", err)
	}

	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: src}); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish OpenPGP message: %w", err)
	}

	return nil
}

// Decrypt reads an OpenPGP message from src and writes the verified plaintext to dst
func (e *Encryptor) Decrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	tried := false
	prompt := func(_ []openpgp.Key, symmetric bool) ([]byte, error) {
		if !symmetric || tried {
			return nil, errWrongPassphrase
		}
		tried = true
		return e.passphrase, nil
	}

	md, err := openpgp.ReadMessage(src, nil, prompt, e.config)
	if err != nil {
		if errors.Is(err, errWrongPassphrase) {
			return fmt.Errorf("%w: %v", entities.ErrDecrypt, err)
		}
		return fmt.Errorf("failed to read OpenPGP message: %w: %v", entities.ErrDecrypt, err)
	}

	// The integrity check runs when the body hits EOF, so a tampered message fails here
	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: md.UnverifiedBody}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to decrypt payload: %w: %v", entities.ErrCorrupt, err)
	}

	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
