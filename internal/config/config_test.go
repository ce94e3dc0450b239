package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadNamingDefaultsAndOverrides(t *testing.T) {
	path := writeFile(t, "service-addr :9001\nregistration-addr :9002\n")
	c, err := LoadNaming(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp", c.ServiceNet)
	assert.Equal(t, ":9001", c.ServiceAddr)
	assert.Equal(t, "tcp", c.RegistrationNet)
	assert.Equal(t, ":9002", c.RegistrationAddr)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadNamingUnknownKey(t *testing.T) {
	path := writeFile(t, "bogus-key value\n")
	_, err := LoadNaming(path)
	require.Error(t, err)
}

func TestLoadStorageRequiresLocalRootForDiskBackend(t *testing.T) {
	path := writeFile(t, "storage-addr :9101\n")
	_, err := LoadStorage(path)
	require.Error(t, err)
}

func TestLoadStorageResolvesRelativeLocalRoot(t *testing.T) {
	path := writeFile(t, "storage-addr :9101\nlocal-root data\n")
	c, err := LoadStorage(path)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(c.LocalRoot))
}

func TestLoadStorageS3Backend(t *testing.T) {
	path := writeFile(t, "backend s3\ns3-bucket bucket\ns3-region us-east-1\n")
	c, err := LoadStorage(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", c.Backend)
	assert.Equal(t, "bucket", c.S3Bucket)
	assert.Empty(t, c.LocalRoot)
}

func TestScanIgnoresBlankAndCommentLines(t *testing.T) {
	path := writeFile(t, "\n# a comment\nstorage-addr :9101\nlocal-root /tmp/data\n")
	c, err := LoadStorage(path)
	require.NoError(t, err)
	assert.Equal(t, ":9101", c.StorageAddr)
}
