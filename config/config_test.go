package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err, "an explicitly named missing file is an error")

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "horizontal", cfg.Layout.DefaultSplit)
	require.Equal(t, 0.5, cfg.Layout.FloatSize)
	require.Equal(t, "close", cfg.Bindings["super+q"])
	require.Empty(t, cfg.Outputs)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tatami.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[layout]
default_split = "vertical"
float_size = 0.75

[bindings]
"super+b" = "spawn:firefox"

[[outputs]]
name = "DP-1"
width = 2560
height = 1440
refresh = 144000

[logging]
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "vertical", cfg.Layout.DefaultSplit)
	require.Equal(t, 0.75, cfg.Layout.FloatSize)
	require.Equal(t, "spawn:firefox", cfg.Bindings["super+b"])
	require.Len(t, cfg.Outputs, 1)
	require.Equal(t, "DP-1", cfg.Outputs[0].Name)
	require.Equal(t, 2560, cfg.Outputs[0].Width)
	require.Equal(t, 144000, cfg.Outputs[0].Refresh)
	require.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tatami.toml")
	require.NoError(t, os.WriteFile(path, []byte(`layout = "not a table`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
