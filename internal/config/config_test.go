package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("IMGROTATE_JPEGTRAN", "")
	t.Setenv("IMGROTATE_MAGICK", "")
	t.Setenv("IMGROTATE_FALLBACK_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "rotate_bkup", cfg.Backup.DirName)
	assert.Equal(t, filepath.Join(home, "rotate_bkup"), cfg.Backup.FallbackDir)
	assert.Equal(t, DefaultToolTimeout, cfg.Tools.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Selection.Timeout)
	assert.Nil(t, cfg.JPEGTranCandidates())
	assert.Nil(t, cfg.MagickCandidates())
}

func TestLoadRequiredFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("IMGROTATE_JPEGTRAN", "")
	t.Setenv("IMGROTATE_MAGICK", "")
	t.Setenv("IMGROTATE_FALLBACK_DIR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backup:
  dir_name: .originals
  fallback_dir: /var/tmp/originals
tools:
  jpegtran: /opt/mozjpeg/bin/jpegtran
  magick: /usr/local/bin/magick
  timeout: 30s
selection:
  command: [xdg-selected-file, --first]
  timeout: 1500ms
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, ".originals", cfg.Backup.DirName)
	assert.Equal(t, "/var/tmp/originals", cfg.Backup.FallbackDir)
	assert.Equal(t, []string{"/opt/mozjpeg/bin/jpegtran"}, cfg.JPEGTranCandidates())
	assert.Equal(t, []string{"/usr/local/bin/magick"}, cfg.MagickCandidates())
	assert.Equal(t, 30*time.Second, cfg.Tools.Timeout)
	assert.Equal(t, []string{"xdg-selected-file", "--first"}, cfg.Selection.Command)
	assert.Equal(t, 1500*time.Millisecond, cfg.Selection.Timeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  jpegtran: /from/file\n"), 0o644))
	t.Setenv("IMGROTATE_JPEGTRAN", "/from/env")
	t.Setenv("IMGROTATE_MAGICK", "")
	t.Setenv("IMGROTATE_FALLBACK_DIR", "/env/fallback")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/from/env"}, cfg.JPEGTranCandidates())
	assert.Equal(t, "/env/fallback", cfg.Backup.FallbackDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"nested dir name":  "backup:\n  dir_name: a/b\n",
		"negative timeout": "tools:\n  timeout: -1s\n",
		"malformed yaml":   "backup: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path, true)
			assert.Error(t, err)
		})
	}
}
