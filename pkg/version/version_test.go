package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestJSONRoundTrip(t *testing.T) {
	out, err := Get().JSON()
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, Version, decoded["version"])
	assert.Equal(t, GitCommit, decoded["gitCommit"])
	assert.Contains(t, decoded, "buildDate")
}

func TestString(t *testing.T) {
	s := Get().String()
	assert.Contains(t, s, "devops-tests")
	assert.Contains(t, s, Version)
}
