package source

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// tarSource unpacks a tar or tar.gz archive. Its identity is the archive
// digest, verified against source-checksum when one is declared.
type tarSource struct {
	part     string
	path     string
	checksum string
}

func (s *tarSource) Identity() (string, error) {
	digest, err := s.digest()
	if err != nil {
		return "", err
	}
	if s.checksum != "" && digest != s.checksum {
		return "", partforgeerrors.NewSourceRetrievalError(s.part, s.path,
			fmt.Errorf("checksum mismatch: expected %s, got %s", s.checksum, digest))
	}
	return "tar:" + digest, nil
}

func (s *tarSource) digest() (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *tarSource) Pull(ctx context.Context, dst string) error {
	if _, err := s.Identity(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(s.path, ".gz") || strings.HasSuffix(s.path, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
		}
		defer gz.Close()
		reader = gz
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}

	tr := tar.NewReader(reader)
	for {
		if ctx.Err() != nil {
			return partforgeerrors.NewSourceRetrievalError(s.part, s.path, ctx.Err())
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
		}

		target, err := sanitizePath(dst, hdr.Name)
		if err != nil {
			return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
			}
		}
	}
}

func sanitizePath(root, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction root", name)
	}
	return filepath.Join(root, cleaned), nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return err
	}
	return out.Close()
}
