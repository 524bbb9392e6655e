package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Buffers)
	assert.Equal(t, 13, cfg.Shards)
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, DeviceConfig{ID: 1, Kind: KindMemory}, cfg.Devices[0])
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
buffers: 64
shards: 7
logLevel: debug
resource:
  memoryLimitBytes: 1048576
devices:
  - id: 1
    kind: file
    path: /tmp/disk.img
    blocks: 2048
  - id: 2
    kind: s3
    bucket: blocks
    prefix: vol2
    codec: zstd
`)

	t.Setenv("BCACHE_SHARDS", "11")
	t.Setenv("BCACHE_RESOURCE_MAX_INFLIGHT_IO", "8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Buffers)
	assert.Equal(t, 11, cfg.Shards, "environment wins over the file")
	assert.Equal(t, int64(1<<20), cfg.Resource.MemoryLimitBytes)
	assert.Equal(t, int64(8), cfg.Resource.MaxInflightIO)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, uint32(2048), cfg.Devices[0].Blocks)
	assert.Equal(t, "zstd", cfg.Devices[1].Codec)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "bufers: 3\n", "unmarshaling config file"},
		{"bad log level", "logLevel: loud\n", "log level"},
		{"unknown kind", "devices:\n  - id: 1\n    kind: tape\n", `unknown kind "tape"`},
		{"file without path", "devices:\n  - id: 1\n    kind: file\n    blocks: 4\n", "missing path"},
		{"dynamodb without volume", "devices:\n  - id: 1\n    kind: dynamodb\n    table: t\n", "missing volume"},
		{"minio without endpoint", "devices:\n  - id: 1\n    kind: minio\n    bucket: b\n", "missing endpoint"},
		{"duplicate id", "devices:\n  - id: 3\n    kind: memory\n  - id: 3\n    kind: memory\n", "duplicate id 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
