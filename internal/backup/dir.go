package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/yegorkir/imgrotate/internal/fault"
)

const DefaultDirName = "rotate_bkup"

// Manager picks the backup directory for each parent directory and remembers
// the answer for the rest of the run. It is not safe for concurrent use.
type Manager struct {
	dirName     string
	fallbackDir string
	cache       map[string]string
}

// NewManager returns a Manager that places backups in <parent>/<dirName>,
// falling back to fallbackDir when that is not usable. An empty fallbackDir
// disables the fallback.
func NewManager(dirName, fallbackDir string) *Manager {
	if dirName == "" {
		dirName = DefaultDirName
	}
	return &Manager{
		dirName:     dirName,
		fallbackDir: fallbackDir,
		cache:       make(map[string]string),
	}
}

// Dir returns a writable backup directory for files living in parent.
func (m *Manager) Dir(parent string) (string, error) {
	if dir, ok := m.cache[parent]; ok {
		return dir, nil
	}

	local := filepath.Join(parent, m.dirName)
	localErr := EnsureWritableDir(local)
	if localErr == nil {
		m.cache[parent] = local
		return local, nil
	}

	if m.fallbackDir == "" {
		return "", fault.New(fault.BackupDirUnavailable, "prepare", local, localErr)
	}

	if err := EnsureWritableDir(m.fallbackDir); err != nil {
		return "", fault.New(fault.BackupDirUnavailable, "prepare", local,
			fmt.Errorf("%v; fallback %s: %w", localErr, m.fallbackDir, err))
	}

	log.Warn().
		Err(localErr).
		Str("unusable", local).
		Str("fallback", m.fallbackDir).
		Msg("Cannot use backup directory next to the image, using fallback location")

	m.cache[parent] = m.fallbackDir
	return m.fallbackDir, nil
}

// Fallback reports whether dir is the fallback location rather than a
// per-directory one.
func (m *Manager) Fallback(dir string) bool {
	return m.fallbackDir != "" && dir == m.fallbackDir
}

// EnsureWritableDir creates path if needed and proves it accepts new files by
// writing and removing a probe file.
func EnsureWritableDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
	default:
		return err
	}

	probe, err := os.CreateTemp(path, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
