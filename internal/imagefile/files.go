package imagefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegorkir/imgrotate/internal/fault"
)

// Kind is the image format, derived from the file extension.
type Kind int

const (
	Unsupported Kind = iota
	JPEG
	PNG
)

func (k Kind) String() string {
	switch k {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	default:
		return "unsupported"
	}
}

// Ext is the extension used for scratch files of this kind.
func (k Kind) Ext() string {
	switch k {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	default:
		return ""
	}
}

// Image is a resolved rotation target: an absolute path to an existing,
// non-empty regular file of a supported kind.
type Image struct {
	Path string
	Kind Kind
	Size int64
	Mode os.FileMode
}

func (img *Image) Dir() string  { return filepath.Dir(img.Path) }
func (img *Image) Base() string { return filepath.Base(img.Path) }

func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return JPEG
	case ".png":
		return PNG
	default:
		return Unsupported
	}
}

// Resolve turns raw user input into an Image. It accepts quoted paths,
// drag-and-drop escapes and a leading ~. It never writes to the filesystem.
func Resolve(raw string) (*Image, error) {
	path := Clean(raw)
	if path == "" {
		return nil, fault.New(fault.InvalidPath, "resolve", "", fmt.Errorf("empty path"))
	}

	path, err := ExpandHome(path)
	if err != nil {
		return nil, fault.New(fault.InvalidPath, "expand home", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fault.New(fault.InvalidPath, "absolute path", path, err)
	}

	kind := KindOf(abs)
	if kind == Unsupported {
		return nil, fault.New(fault.InvalidPath, "check extension", abs,
			fmt.Errorf("only .jpg, .jpeg and .png files are supported"))
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.New(fault.InvalidPath, "stat", abs, fmt.Errorf("file not found"))
		}
		return nil, fault.New(fault.InvalidPath, "stat", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fault.New(fault.InvalidPath, "stat", abs, fmt.Errorf("not a regular file"))
	}
	if info.Size() == 0 {
		return nil, fault.New(fault.InvalidPath, "stat", abs, fmt.Errorf("file is empty"))
	}

	return &Image{
		Path: abs,
		Kind: kind,
		Size: info.Size(),
		Mode: info.Mode().Perm(),
	}, nil
}

// Clean strips surrounding whitespace, one pair of matching quotes and the
// backslash escapes file managers add when a file is dropped on a terminal.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	s = strings.ReplaceAll(s, `\ `, " ")
	s = strings.ReplaceAll(s, `\'`, "'")
	return s
}

func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
