package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFileNoExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	backup, err := BackupFile(path)
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupFileCreatesCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searchemu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	backup, err := BackupFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 8080")
}

func TestCleanupOldBackupsKeepsMaxBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searchemu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	for i := 0; i < MaxBackups+3; i++ {
		_, err := BackupFile(path)
		require.NoError(t, err)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxBackups)
}

func TestRestoreFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searchemu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	backup, err := BackupFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("modified"), 0o644))

	require.NoError(t, RestoreFile(path, backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}
