package filesets

import (
	"io"
	"os"
	"path/filepath"
)

// Migrate copies the selected files and directories from srcRoot into
// dstRoot. Files already present in dstRoot are left untouched, which makes
// migration safe to repeat and lets an update pass bring over only newly
// selected files.
func Migrate(files, dirs []string, srcRoot, dstRoot string) error {
	for _, dir := range dirs {
		src, err := os.Stat(filepath.Join(srcRoot, dir))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(dstRoot, dir), src.Mode().Perm()); err != nil {
			return err
		}
	}

	for _, file := range files {
		dst := filepath.Join(dstRoot, file)
		if _, err := os.Lstat(dst); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(srcRoot, file), dst); err != nil {
			return err
		}
	}
	return nil
}

// Unmigrate removes previously migrated files from dstRoot, then prunes any
// of the recorded directories that became empty. Directories still shared
// with other parts are kept.
func Unmigrate(files, dirs []string, dstRoot string) error {
	for _, file := range files {
		if err := os.Remove(filepath.Join(dstRoot, file)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	// longest paths first so nested directories go before their parents
	ordered := append([]string(nil), dirs...)
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	for _, dir := range ordered {
		path := filepath.Join(dstRoot, dir)
		entries, err := os.ReadDir(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if len(entries) == 0 {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
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
		return os.Symlink(target, dst)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
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
