package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.yaml.in/yaml/v2"
)

// TestDurationUnmarshal verifies both string and integer forms decode.
func TestDurationUnmarshal(t *testing.T) {
	var out struct {
		D Duration `yaml:"d"`
	}

	require.NoError(t, yaml.Unmarshal([]byte(`d: 90s`), &out))
	assert.Equal(t, 90*time.Second, out.D.Std())

	require.NoError(t, yaml.Unmarshal([]byte(`d: 1h30m`), &out))
	assert.Equal(t, 90*time.Minute, out.D.Std())

	require.NoError(t, yaml.Unmarshal([]byte(`d: 1000000000`), &out))
	assert.Equal(t, time.Second, out.D.Std())
}

// TestDurationUnmarshalInvalid verifies malformed values fail.
func TestDurationUnmarshalInvalid(t *testing.T) {
	var out struct {
		D Duration `yaml:"d"`
	}

	err := yaml.Unmarshal([]byte(`d: fast`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

// TestDurationMarshal verifies round-tripping to the string form.
func TestDurationMarshal(t *testing.T) {
	data, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{D: Duration(45 * time.Second)})
	require.NoError(t, err)
	assert.Contains(t, string(data), "45s")
}
