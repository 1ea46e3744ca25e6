package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// localSource copies a directory tree from the local filesystem. Its
// identity digests the tree's file names, sizes, and modification times, so
// editing the source reclassifies the pull step on the next run.
type localSource struct {
	part     string
	path     string
	checksum string
}

func (s *localSource) Identity() (string, error) {
	if s.checksum != "" {
		return "local:" + s.checksum, nil
	}

	digest := sha256.New()
	err := filepath.WalkDir(s.path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(s.path, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			fmt.Fprintf(digest, "d %s\n", rel)
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		fmt.Fprintf(digest, "f %s %d %d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}

	return "local:" + hex.EncodeToString(digest.Sum(nil)), nil
}

func (s *localSource) Pull(ctx context.Context, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}

	err := filepath.WalkDir(s.path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(s.path, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
	if err != nil {
		return partforgeerrors.NewSourceRetrievalError(s.part, s.path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(target, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
