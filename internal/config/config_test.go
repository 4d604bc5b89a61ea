package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Collectibles.Count)
	assert.Equal(t, 8.0, cfg.Collectibles.PickupRadius)
	assert.Equal(t, 16*time.Millisecond, cfg.Tracking.PublishInterval)
	assert.Equal(t, []string{"playerMesh", "player", "explorer"}, cfg.Discovery.AccessorKeys)
}

func TestDecodeOverDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
collectibles:
  count: 10
  pickup_interval: 75ms
scheduler:
  fast:
    max_attempts: 3
discovery:
  accessor_keys: [hero]
`))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Collectibles.Count)
	assert.Equal(t, 75*time.Millisecond, cfg.Collectibles.PickupInterval)
	assert.Equal(t, 3, cfg.Scheduler.Fast.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.Fast.Interval)
	assert.Equal(t, []string{"hero"}, cfg.Discovery.AccessorKeys)
	assert.Equal(t, 5, cfg.Collectibles.NearCount)
}

func TestDecodeEmptyYieldsDefault(t *testing.T) {
	cfg, err := Decode(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "collectibles:\n  colour: red\n",
		"bad duration": "tracking:\n  publish_interval: soon\n",
		"bad color":    "cosmetics:\n  color: green\n",
		"depth":        "discovery:\n  max_depth: 500\n",
		"zero budget":  "scheduler:\n  slow:\n    max_attempts: 0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			require.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestDecodeRejectsSemanticViolations(t *testing.T) {
	_, err := Decode(strings.NewReader("collectibles:\n  count: 3\n  near_count: 5\n"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDecodeSyntaxError(t *testing.T) {
	_, err := Decode(strings.NewReader("collectibles: [unterminated\n"))
	require.ErrorIs(t, err, ErrSyntax)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenehook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 127.0.0.1:0\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
