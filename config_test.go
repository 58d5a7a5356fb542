package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"1KB", 1024, false},
		{"2k", 2048, false},
		{"1.5MB", 1572864, false},
		{"1M", 1048576, false},
		{"2G", 2 * 1024 * 1024 * 1024, false},
		{"512B", 512, false},
		{" 64KB ", 65536, false},
		{"", 0, true},
		{"MB", 0, true},
		{"lots", 0, true},
		{"-1KB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseBytes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestFlags(t *testing.T, args ...string) (*cliOptions, *pflag.FlagSet) {
	t.Helper()
	var opts cliOptions
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.register(fs)
	require.NoError(t, fs.Parse(args))
	return &opts, fs
}

func TestConfigDefaults(t *testing.T) {
	root := newTestTree(t, nil)
	opts, _ := newTestFlags(t, "--root", root)

	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
	assert.Equal(t, int64(defaultPreviewMax), cfg.PreviewMax)
	assert.Equal(t, int64(defaultChunkSize), cfg.ChunkSize)
	assert.Equal(t, time.Duration(0), cfg.ReadTimeout)
	assert.True(t, cfg.Metrics)
}

func TestConfigEnvFallback(t *testing.T) {
	root := newTestTree(t, nil)
	t.Setenv("PEEKDIR_ROOT", root)
	t.Setenv("PEEKDIR_PREVIEW_MAX", "2MB")
	t.Setenv("PEEKDIR_PORT", "4000")
	t.Setenv("PEEKDIR_EXCLUDE", "*.log,build")
	t.Setenv("PEEKDIR_READ_TIMEOUT", "3s")

	opts, fs := newTestFlags(t, "--port", "5000")
	require.NoError(t, applyEnvDefaults(fs))

	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, int64(2*1024*1024), cfg.PreviewMax)
	assert.Equal(t, 5000, cfg.Port, "command-line flags win over the environment")
	assert.Equal(t, []string{"*.log", "build"}, cfg.Exclude)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
}

func TestConfigEnvInvalid(t *testing.T) {
	t.Setenv("PEEKDIR_PORT", "not-a-number")
	_, fs := newTestFlags(t)
	err := applyEnvDefaults(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PEEKDIR_PORT")
}

func TestConfigRootValidation(t *testing.T) {
	root := newTestTree(t, map[string]string{"file.txt": "x"})

	opts, _ := newTestFlags(t, "--root", filepath.Join(root, "missing"))
	_, err := opts.config()
	assert.Error(t, err)

	opts, _ = newTestFlags(t, "--root", filepath.Join(root, "file.txt"))
	_, err = opts.config()
	assert.Error(t, err)

	opts, _ = newTestFlags(t, "--root", "")
	_, err = opts.config()
	assert.Error(t, err)

	opts, _ = newTestFlags(t, "--root", root, "--preview-max", "huge")
	_, err = opts.config()
	assert.Error(t, err)

	opts, _ = newTestFlags(t, "--root", root, "--read-timeout", "-1s")
	_, err = opts.config()
	assert.Error(t, err)
}

// TestConfigRootCanonicalized checks that a symlinked root resolves to its target
func TestConfigRootCanonicalized(t *testing.T) {
	target := newTestTree(t, nil)
	link := filepath.Join(newTestTree(t, nil), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	opts, _ := newTestFlags(t, "--root", link)
	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, target, cfg.Root)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "PEEKDIR_PREVIEW_MAX", envKey("preview-max"))
	assert.Equal(t, "PEEKDIR_ROOT", envKey("root"))
}
