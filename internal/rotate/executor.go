package rotate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yegorkir/imgrotate/internal/backup"
	"github.com/yegorkir/imgrotate/internal/fault"
	"github.com/yegorkir/imgrotate/internal/imagefile"
	"github.com/yegorkir/imgrotate/internal/tools"
)

// ToolProvider returns the external program that rotates a kind of image.
type ToolProvider interface {
	For(kind imagefile.Kind) (tools.Tool, error)
}

// BackupDirs returns the backup directory for a parent directory.
type BackupDirs interface {
	Dir(parent string) (string, error)
}

// Result describes a completed rotation.
type Result struct {
	Image      string
	Direction  imagefile.Direction
	BackupPath string
	BackupSize int64
	Elapsed    time.Duration
}

// Executor rotates one image at a time: back up, run the tool into a scratch
// file next to the image, check the output, rename it over the original.
type Executor struct {
	backups BackupDirs
	tools   ToolProvider
}

func NewExecutor(backups BackupDirs, provider ToolProvider) *Executor {
	return &Executor{backups: backups, tools: provider}
}

// Rotate applies d to img. On any error the file at img.Path is untouched.
// Errors are *fault.Error values; a ReplaceFailed error means the backup was
// written but the original was not rotated.
func (e *Executor) Rotate(ctx context.Context, img *imagefile.Image, d imagefile.Direction) (*Result, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %v", d)
	}
	start := time.Now()
	logger := log.With().
		Str("request", uuid.NewString()).
		Str("image", img.Path).
		Stringer("direction", d).
		Logger()

	r := &request{img: img, dir: d, log: logger}

	backupDir, err := e.backups.Dir(img.Dir())
	if err != nil {
		return nil, r.abort(stateStart, err)
	}
	r.advance(stateBackupDirResolved, "dir", backupDir)

	r.backupPath, r.backupSize, err = backup.Copy(img.Path, backupDir)
	if err != nil {
		return nil, r.abort(stateBackupDirResolved, err)
	}
	r.advance(stateBackupCopied, "backup", r.backupPath)

	// From here on the request runs to completion or failure.
	ctx = context.WithoutCancel(ctx)

	if err := e.invoke(ctx, r); err != nil {
		return nil, r.abort(stateBackupCopied, r.cleanup(err))
	}
	r.advance(stateToolInvoked, "output", r.tmpPath)

	if err := validate(img, r.tmpPath); err != nil {
		return nil, r.abort(stateToolInvoked, r.cleanup(err))
	}
	r.advance(stateOutputValidated, "output", r.tmpPath)

	if err := replace(img, r.tmpPath); err != nil {
		return nil, r.abort(stateOutputValidated, r.cleanup(err))
	}
	r.tmpPath = ""
	r.advance(stateReplaced, "backup", r.backupPath)

	return &Result{
		Image:      img.Path,
		Direction:  d,
		BackupPath: r.backupPath,
		BackupSize: r.backupSize,
		Elapsed:    time.Since(start),
	}, nil
}

func (e *Executor) invoke(ctx context.Context, r *request) error {
	tool, err := e.tools.For(r.img.Kind)
	if err != nil {
		return err
	}

	tmp, err := createScratch(r.img)
	if err != nil {
		return fault.New(fault.RotationFailed, "create scratch file", r.img.Dir(), err)
	}
	r.tmpPath = tmp

	args, err := tools.Args(r.img.Kind, r.dir, r.img.Path, tmp)
	if err != nil {
		return fault.New(fault.RotationFailed, "build arguments", r.img.Path, err)
	}

	res, err := tool.Invoke(ctx, args...)
	if err != nil {
		if fault.KindOf(err) != fault.Unknown {
			return err
		}
		return fault.New(fault.RotationFailed, "run "+tool.Name(), r.img.Path, err)
	}
	if res.ExitCode != 0 {
		return fault.New(fault.RotationFailed, "run "+tool.Name(), r.img.Path,
			fmt.Errorf("exit status %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr))))
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fault.New(fault.RotationFailed, "run "+tool.Name(), r.img.Path, err)
	}
	if info.Size() == 0 {
		return fault.New(fault.RotationFailed, "run "+tool.Name(), r.img.Path,
			fmt.Errorf("tool wrote no output"))
	}
	return nil
}

// createScratch makes an empty file in the image's own directory so the
// final rename never crosses filesystems. The extension is kept because
// ImageMagick picks the output format from it.
func createScratch(img *imagefile.Image) (string, error) {
	stem := strings.TrimSuffix(img.Base(), filepath.Ext(img.Base()))
	name := fmt.Sprintf(".%s.rotate-%s%s", stem, uuid.NewString()[:8], img.Kind.Ext())
	path := filepath.Join(img.Dir(), name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

var (
	jpegHead  = []byte{0xFF, 0xD8, 0xFF}
	jpegTail  = []byte{0xFF, 0xD9}
	pngHead   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	pngTail   = []byte{'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82}
	trailSize = 16
)

// validate checks the scratch file is a complete file of the right format:
// correct signature up front and the end-of-image marker at the back.
func validate(img *imagefile.Image, path string) error {
	fail := func(err error) error {
		return fault.New(fault.ValidationFailed, "check output", path, err)
	}

	if filepath.Clean(path) == filepath.Clean(img.Path) {
		return fail(fmt.Errorf("output is the original file"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	if len(data) == 0 {
		return fail(fmt.Errorf("output is empty"))
	}

	var head, tail []byte
	switch img.Kind {
	case imagefile.JPEG:
		head, tail = jpegHead, jpegTail
	case imagefile.PNG:
		head, tail = pngHead, pngTail
	default:
		return fail(fmt.Errorf("unsupported kind %s", img.Kind))
	}

	if !bytes.HasPrefix(data, head) {
		return fail(fmt.Errorf("output is not a %s file", img.Kind))
	}
	end := data[max(0, len(data)-trailSize):]
	if !bytes.Contains(end, tail) {
		return fail(fmt.Errorf("output %s file is truncated", img.Kind))
	}
	return nil
}

func replace(img *imagefile.Image, tmp string) error {
	if err := os.Chmod(tmp, img.Mode); err != nil {
		return fault.New(fault.ReplaceFailed, "chmod", tmp, err)
	}
	if err := os.Rename(tmp, img.Path); err != nil {
		return fault.New(fault.ReplaceFailed, "rename", img.Path, err)
	}
	return nil
}

type state string

const (
	stateStart             state = "start"
	stateBackupDirResolved state = "backup-dir-resolved"
	stateBackupCopied      state = "backup-copied"
	stateToolInvoked       state = "tool-invoked"
	stateOutputValidated   state = "output-validated"
	stateReplaced          state = "replaced"
)

type request struct {
	img        *imagefile.Image
	dir        imagefile.Direction
	log        zerolog.Logger
	backupPath string
	backupSize int64
	tmpPath    string
}

func (r *request) advance(to state, key, value string) {
	r.log.Debug().Str("state", string(to)).Str(key, value).Msg("Rotation step done")
}

func (r *request) abort(from state, err error) error {
	ev := r.log.Debug().Str("state", "aborted").Str("from", string(from)).Err(err)
	if r.backupPath != "" {
		ev = ev.Str("backup", r.backupPath)
	}
	ev.Msg("Rotation aborted")
	return err
}

// cleanup removes the scratch file, keeping err as the primary failure.
func (r *request) cleanup(err error) error {
	if r.tmpPath == "" {
		return err
	}
	rmErr := os.Remove(r.tmpPath)
	if rmErr == nil || os.IsNotExist(rmErr) {
		r.tmpPath = ""
		return err
	}
	// Keep the fault.Error first so its Kind still wins in errors.As.
	merged := multierror.Append(err, fmt.Errorf("remove scratch file: %w", rmErr))
	return &fault.Error{Kind: fault.KindOf(err), Op: "clean up", Path: r.tmpPath, Err: merged}
}
