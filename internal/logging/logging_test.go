package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Setup(&buf, false)
	log.Debug().Msg("hidden detail")
	log.Warn().Str("fallback", "/home/me/rotate_bkup").Msg("Using fallback")
	assert.NotContains(t, buf.String(), "hidden detail")
	assert.Contains(t, buf.String(), "Using fallback")
	assert.Contains(t, buf.String(), "/home/me/rotate_bkup")

	buf.Reset()
	Setup(&buf, true)
	log.Debug().Msg("shown detail")
	assert.Contains(t, buf.String(), "shown detail")
}
