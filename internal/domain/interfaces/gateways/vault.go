package gateways

import (
	"context"
	"io"
)

// Archiver turns a path into a single stream and back
type Archiver interface {
	// Archive writes path (file, directory or symlink) to dst
	Archive(ctx context.Context, path string, dst io.Writer) error

	// Restore recreates target from an archive produced by Archive
	Restore(ctx context.Context, src io.Reader, target string, overwrite bool) error

	// Purge removes the plaintext at path
	Purge(ctx context.Context, path string) error
}

// Encryptor encrypts and decrypts vault blobs
type Encryptor interface {
	// Name is the backend name recorded in the manifest
	Name() string

	// Format identifies the blob format; backends sharing a format read each other's blobs
	Format() string

	Encrypt(ctx context.Context, dst io.Writer, src io.Reader) error
	Decrypt(ctx context.Context, dst io.Writer, src io.Reader) error
}

// ChecksumVerifier computes and checks SHA256 digests
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error

	// HashWriter wraps w so the digest and size of a stream are known once it is written
	HashWriter(w io.Writer) HashingWriter
}

// HashingWriter hashes and counts everything written through it
type HashingWriter interface {
	io.Writer
	Sum() string
	Count() int64
}
