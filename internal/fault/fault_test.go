package fault

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelOfSameKind(t *testing.T) {
	err := New(ToolNotFound, "lookup", "jpegtran", fs.ErrNotExist)
	wrapped := fmt.Errorf("rotate photo.jpg: %w", err)

	assert.ErrorIs(t, wrapped, ErrToolNotFound)
	assert.NotErrorIs(t, wrapped, ErrRotationFailed)
	assert.ErrorIs(t, wrapped, fs.ErrNotExist)
	assert.Equal(t, ToolNotFound, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestErrorMessage(t *testing.T) {
	err := New(BackupFailed, "copy", "/tmp/a.jpg", errors.New("disk full"))
	assert.Equal(t, "backup failed: copy /tmp/a.jpg: disk full", err.Error())

	bare := New(InvalidPath, "", "", nil)
	assert.Equal(t, "invalid path", bare.Error())
}

func TestExitCodesAreDistinct(t *testing.T) {
	seen := map[int]Kind{}
	for k := InvalidPath; k <= ReplaceFailed; k++ {
		code := k.ExitCode()
		assert.NotEqual(t, 0, code)
		assert.NotEqual(t, 1, code, "exit code 1 is reserved for usage errors")
		if prev, ok := seen[code]; ok {
			t.Fatalf("%s and %s share exit code %d", prev, k, code)
		}
		seen[code] = k
	}
	assert.Equal(t, 1, Unknown.ExitCode())
}
