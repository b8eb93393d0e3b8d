package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querysource/internal/config"
)

func TestLocalProvider_Commit(t *testing.T) {
	base := t.TempDir()
	p, err := NewLocalProvider(base)
	require.NoError(t, err)

	obj, err := p.Create(context.Background(), "reports/daily.csv")
	require.NoError(t, err)
	_, err = obj.Write([]byte("id\n1\n"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(base, "reports", "daily.csv"))
	assert.True(t, os.IsNotExist(err), "object visible before commit")

	require.NoError(t, obj.Close())
	data, err := os.ReadFile(filepath.Join(base, "reports", "daily.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))

	assert.True(t, strings.HasPrefix(p.Location("reports/daily.csv"), "file://"))
	assert.True(t, strings.HasSuffix(p.Location("reports/daily.csv"), "reports/daily.csv"))
}

func TestLocalProvider_Abort(t *testing.T) {
	base := t.TempDir()
	p, err := NewLocalProvider(base)
	require.NoError(t, err)

	obj, err := p.Create(context.Background(), "out.csv")
	require.NoError(t, err)
	_, _ = obj.Write([]byte("partial"))
	obj.Abort(errors.New("query failed"))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalProvider_RejectsEscapingKeys(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.csv", "/etc/passwd", ""} {
		_, err := p.Create(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	p, err := New(context.Background(), &config.Config{StorageType: "local", LocalStoragePath: dir})
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)
	assert.DirExists(t, dir)

	_, err = New(context.Background(), &config.Config{StorageType: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), &config.Config{StorageType: "ftp"})
	assert.Error(t, err)
}

func TestS3Provider_Location(t *testing.T) {
	p := NewS3Provider(nil, "reports")
	assert.Equal(t, "s3://reports/exports/a.csv", p.Location("exports/a.csv"))
}
