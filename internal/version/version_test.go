package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	// Defaults before ldflags overwrite them at build time.
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestVersionPayload(t *testing.T) {
	// Shape of the payload returned by the version endpoint.
	payload := map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_time": BuildTime,
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Version, decoded["version"])
	assert.Equal(t, Commit, decoded["commit"])
	assert.Equal(t, BuildTime, decoded["build_time"])
}
