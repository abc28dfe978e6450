package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yegorkir/imgrotate/internal/backup"
	"github.com/yegorkir/imgrotate/internal/imagefile"
	"github.com/yegorkir/imgrotate/internal/selection"
)

type Config struct {
	Backup struct {
		DirName     string `yaml:"dir_name"`
		FallbackDir string `yaml:"fallback_dir"`
	} `yaml:"backup"`
	Tools struct {
		JPEGTran string        `yaml:"jpegtran"`
		Magick   string        `yaml:"magick"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"tools"`
	Selection struct {
		Command []string      `yaml:"command"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"selection"`
}

const DefaultToolTimeout = 2 * time.Minute

// Default returns the built-in settings.
func Default() *Config {
	var c Config
	c.Backup.DirName = backup.DefaultDirName
	c.Backup.FallbackDir = filepath.Join("~", backup.DefaultDirName)
	c.Tools.Timeout = DefaultToolTimeout
	c.Selection.Timeout = selection.DefaultTimeout
	return &c
}

// DefaultPath is $XDG_CONFIG_HOME/imgrotate/config.yaml or its platform
// equivalent.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "imgrotate", "config.yaml"), nil
}

// Load reads filename over the defaults and applies environment overrides.
// A missing file is only an error when required is set.
func Load(filename string, required bool) (*Config, error) {
	ret := Default()

	if filename != "" {
		f, err := os.Open(filename)
		switch {
		case err == nil:
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				return nil, err
			}
			if err := yaml.Unmarshal(data, ret); err != nil {
				return nil, fmt.Errorf("parse %s: %w", filename, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, err
		}
	}

	ret.applyEnv()
	if err := ret.finish(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IMGROTATE_JPEGTRAN"); v != "" {
		c.Tools.JPEGTran = v
	}
	if v := os.Getenv("IMGROTATE_MAGICK"); v != "" {
		c.Tools.Magick = v
	}
	if v := os.Getenv("IMGROTATE_FALLBACK_DIR"); v != "" {
		c.Backup.FallbackDir = v
	}
}

func (c *Config) finish() error {
	if c.Backup.DirName == "" {
		c.Backup.DirName = backup.DefaultDirName
	}
	if filepath.Base(c.Backup.DirName) != c.Backup.DirName {
		return fmt.Errorf("backup.dir_name %q must be a plain directory name", c.Backup.DirName)
	}
	if c.Backup.FallbackDir != "" {
		dir, err := imagefile.ExpandHome(c.Backup.FallbackDir)
		if err != nil {
			return fmt.Errorf("backup.fallback_dir: %w", err)
		}
		if dir, err = filepath.Abs(dir); err != nil {
			return fmt.Errorf("backup.fallback_dir: %w", err)
		}
		c.Backup.FallbackDir = dir
	}
	if c.Tools.Timeout < 0 || c.Selection.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// JPEGTranCandidates is the configured jpegtran, or nil for the default.
func (c *Config) JPEGTranCandidates() []string {
	return candidates(c.Tools.JPEGTran)
}

// MagickCandidates is the configured ImageMagick binary, or nil for the
// default.
func (c *Config) MagickCandidates() []string {
	return candidates(c.Tools.Magick)
}

func candidates(v string) []string {
	if v == "" {
		return nil
	}
	if expanded, err := imagefile.ExpandHome(v); err == nil {
		v = expanded
	}
	return []string{v}
}
