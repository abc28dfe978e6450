package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegorkir/imgrotate/internal/fault"
)

// maxClaimAttempts bounds how many names Copy tries when the name chosen by
// NextAvailableName is taken before the copy opens it.
const maxClaimAttempts = 16

// NextAvailableName returns the first of base, stem_1.ext, stem_2.ext, ...
// that does not exist in dir.
func NextAvailableName(dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := base
	for counter := 1; ; counter++ {
		_, err := os.Lstat(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
}

// Copy copies src into dir under a name from NextAvailableName and returns
// the backup path and its size. The destination is opened with O_EXCL, so an
// existing file is never truncated. The copy is removed unless its size
// matches src.
func Copy(src, dir string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fault.New(fault.BackupFailed, "open", src, err)
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return "", 0, fault.New(fault.BackupFailed, "stat", src, err)
	}

	dest, out, err := claim(dir, filepath.Base(src))
	if err != nil {
		return "", 0, err
	}

	n, copyErr := io.Copy(out, in)
	if copyErr == nil {
		copyErr = out.Sync()
	}
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(dest)
		return "", 0, fault.New(fault.BackupFailed, "copy", dest, copyErr)
	}

	if err := verify(dest, srcInfo.Size()); err != nil {
		os.Remove(dest)
		return "", 0, fault.New(fault.BackupFailed, "verify", dest, err)
	}
	return dest, n, nil
}

func claim(dir, base string) (string, *os.File, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		name, err := NextAvailableName(dir, base)
		if err != nil {
			return "", nil, fault.New(fault.BackupFailed, "name", dir, err)
		}
		dest := filepath.Join(dir, name)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, fault.New(fault.BackupFailed, "create", dest, err)
		}
		return dest, out, nil
	}
	return "", nil, fault.New(fault.BackupFailed, "name", dir,
		fmt.Errorf("no free backup name for %s after %d attempts", base, maxClaimAttempts))
}

func verify(path string, want int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() != want {
		return fmt.Errorf("backup size %d does not match original size %d", info.Size(), want)
	}
	return nil
}
