package gateways

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/gabrielkoerich/vault/internal/domain/entities"
	"github.com/gabrielkoerich/vault/internal/domain/interfaces"
)

// archiver packs a path into a zstd-compressed tar stream and restores it
type archiver struct {
	logger interfaces.Logger
	level  zstd.EncoderLevel
}

// NewArchiver creates a tar+zstd archiver
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewArchiver(logger interfaces.Logger) *archiver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &archiver{
		logger: logger,
		level:  zstd.SpeedDefault,
	}
}

// Archive writes path to dst. Entry names are rooted at the base name of path.
func (a *archiver) Archive(ctx context.Context, root string, dst io.Writer) error {
	zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(a.level))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	tw := tar.NewWriter(zw)
	parent := filepath.Dir(root)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(p)
			if err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", p, err)
			}
		}

		if !info.Mode().IsRegular() && !info.IsDir() && linkTarget == "" {
			a.logger.Warn("skipping special file", interfaces.F("path", p), interfaces.F("mode", info.Mode().String()))
			return nil
		}

		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}

		relPath, err := filepath.Rel(parent, p)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		header.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return copyFileInto(tw, p)
	})

	if walkErr != nil {
		_ = tw.Close()
		_ = zw.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}

	return nil
}

func copyFileInto(w io.Writer, p string) error {
	//nolint:gosec // G304: path comes from walking a configured sensitive path
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s to tar: %w", p, err)
	}
	return nil
}

// Restore recreates target from src. Every entry must live at or below the base
// name of target; symlinks are created last so no entry is written through one.
func (a *archiver) Restore(ctx context.Context, src io.Reader, target string, overwrite bool) error {
	target = filepath.Clean(target)
	parent := filepath.Dir(target)
	base := filepath.Base(target)

	if _, err := os.Lstat(target); err == nil {
		if !overwrite {
			return fmt.Errorf("%s: %w", target, entities.ErrDestinationExists)
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove existing %s: %w", target, err)
		}
	}

	if err := os.MkdirAll(parent, 0o700); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	zr, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)

	type deferred struct {
		dest   string
		header *tar.Header
	}
	var dirs, symlinks []deferred

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		name, err := safeEntryName(header.Name, base)
		if err != nil {
			return err
		}
		dest := filepath.Join(parent, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			dirs = append(dirs, deferred{dest: dest, header: header})

		case tar.TypeReg:
			if err := restoreFile(tr, dest, header); err != nil {
				return err
			}

		case tar.TypeSymlink:
			symlinks = append(symlinks, deferred{dest: dest, header: header})

		default:
			a.logger.Warn("ignoring unsupported tar entry",
				interfaces.F("name", header.Name), interfaces.F("type", string(header.Typeflag)))
		}
	}

	for _, link := range symlinks {
		if err := os.MkdirAll(filepath.Dir(link.dest), 0o700); err != nil {
			return fmt.Errorf("failed to create directory for symlink: %w", err)
		}
		if err := os.Symlink(link.header.Linkname, link.dest); err != nil {
			return fmt.Errorf("failed to create symlink %s: %w", link.dest, err)
		}
	}

	// Deepest first so setting a parent's mtime is not undone by its children
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i].dest) > len(dirs[j].dest) })
	for _, dir := range dirs {
		//nolint:gosec // G115: tar header mode fits in FileMode
		if err := os.Chmod(dir.dest, os.FileMode(dir.header.Mode).Perm()); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", dir.dest, err)
		}
		if err := os.Chtimes(dir.dest, dir.header.ModTime, dir.header.ModTime); err != nil {
			return fmt.Errorf("failed to set times on %s: %w", dir.dest, err)
		}
	}

	return nil
}

func restoreFile(r io.Reader, dest string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	//nolint:gosec // G115,G304: mode from our own archive, dest validated by safeEntryName
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(header.Mode).Perm())
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.CopyN(out, r, header.Size); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}

	//nolint:gosec // G115: tar header mode fits in FileMode
	if err := os.Chmod(dest, os.FileMode(header.Mode).Perm()); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dest, err)
	}

	return os.Chtimes(dest, header.ModTime, header.ModTime)
}

// safeEntryName cleans a tar entry name and checks that it stays under base
func safeEntryName(name, base string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%q: %w", name, entities.ErrUnsafeArchive)
	}

	clean := path.Clean(name)
	if clean != base && !strings.HasPrefix(clean, base+"/") {
		return "", fmt.Errorf("%q: %w", name, entities.ErrUnsafeArchive)
	}

	return clean, nil
}

// Purge removes the plaintext at p
func (a *archiver) Purge(_ context.Context, p string) error {
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	a.logger.Debug("removed plaintext", interfaces.F("path", p))
	return nil
}
