package acquire

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ReplaceDir extracts archive into a staging directory beside live and
// swaps it in with renames: live moves to .old, staging moves to live, and
// .old is removed. A swap interrupted between the two renames is repaired on
// the next call.
func ReplaceDir(archive, live string) error {
	parent, base := filepath.Dir(live), filepath.Base(live)
	staging := filepath.Join(parent, "."+base+".staging")
	old := filepath.Join(parent, "."+base+".old")

	if err := restoreInterrupted(live, old); err != nil {
		return err
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear old dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := Unzip(archive, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}

	hadLive := true
	if err := os.Rename(live, old); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			os.RemoveAll(staging)
			return fmt.Errorf("move live dir aside: %w", err)
		}
		hadLive = false
	}
	if err := os.Rename(staging, live); err != nil {
		if hadLive {
			_ = os.Rename(old, live)
		}
		return fmt.Errorf("move staging dir into place: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("remove old dir: %w", err)
	}
	return nil
}

func restoreInterrupted(live, old string) error {
	if _, err := os.Stat(live); err == nil {
		return nil
	}
	if _, err := os.Stat(old); err != nil {
		return nil
	}
	if err := os.Rename(old, live); err != nil {
		return fmt.Errorf("restore interrupted swap: %w", err)
	}
	return nil
}

// Unzip extracts every entry of archive under dest. Entries that would land
// outside dest are rejected.
func Unzip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
