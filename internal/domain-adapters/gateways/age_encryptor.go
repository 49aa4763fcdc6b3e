package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
)

// ageEncryptor encrypts blobs natively with age
type ageEncryptor struct {
	recipients []age.Recipient
	identities []age.Identity
	format     string
}

// NewAgeIdentityEncryptor encrypts to the X25519 identities in identityFile plus any extra recipients
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewAgeIdentityEncryptor(identityFile string, extraRecipients []string) (*ageEncryptor, error) {
	//nolint:gosec // G304: identity file path comes from the user's config
	f, err := os.Open(identityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity file %s: %w", identityFile, err)
	}

	enc := &ageEncryptor{identities: identities, format: entities.FormatAgeX25519}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			enc.recipients = append(enc.recipients, x.Recipient())
		}
	}

	if len(extraRecipients) > 0 {
		extra, err := age.ParseRecipients(strings.NewReader(strings.Join(extraRecipients, "\n")))
		if err != nil {
			return nil, fmt.Errorf("failed to parse recipients: %w", err)
		}
		enc.recipients = append(enc.recipients, extra...)
	}

	if len(enc.recipients) == 0 {
		return nil, fmt.Errorf("identity file %s holds no X25519 identity", identityFile)
	}

	return enc, nil
}

// NewAgePassphraseEncryptor encrypts with an scrypt passphrase. workFactor 0 keeps age's default.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewAgePassphraseEncryptor(passphrase string, workFactor int) (*ageEncryptor, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid passphrase: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid passphrase: %w", err)
	}

	return &ageEncryptor{
		recipients: []age.Recipient{recipient},
		identities: []age.Identity{identity},
		format:     entities.FormatAgeScrypt,
	}, nil
}

// Name returns the backend name
func (e *ageEncryptor) Name() string {
	return string(entities.BackendAge)
}

// Format returns the age recipient type blobs are written for
func (e *ageEncryptor) Format() string {
	return e.format
}

// Encrypt streams src into an age file written to dst
func (e *ageEncryptor) Encrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	w, err := age.Encrypt(dst, e.recipients...)
	if err != nil {
		return fmt.Errorf("failed to start age encryption: %w", err)
	}

	if _, err := io.Copy(w, withContext(ctx, src)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish age file: %w", err)
	}

	return nil
}

// Decrypt streams the plaintext of the age file in src to dst
func (e *ageEncryptor) Decrypt(ctx context.Context, dst io.Writer, src io.Reader) error {
	r, err := age.Decrypt(src, e.identities...)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return fmt.Errorf("%w: %v", entities.ErrDecrypt, err)
		}
		return fmt.Errorf("failed to read age header: %w: %v", entities.ErrDecrypt, err)
	}

	if _, err := io.Copy(dst, withContext(ctx, r)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to decrypt payload: %w: %v", entities.ErrCorrupt, err)
	}

	return nil
}

// GenerateAgeIdentity returns a new identity file body and its public recipient
func GenerateAgeIdentity(now time.Time) (string, string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate age identity: %w", err)
	}

	recipient := identity.Recipient().String()

	var b strings.Builder
	fmt.Fprintf(&b, "# created: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "# public key: %s\n", recipient)
	fmt.Fprintf(&b, "%s\n", identity.String())

	return b.String(), recipient, nil
}
