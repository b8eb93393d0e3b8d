package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querysource/internal/errs"
)

func TestConnection_Validate(t *testing.T) {
	valid := Connection{Backend: "oracle", ConnectString: "db:1521/XE", User: "scott", Password: "tiger"}

	tests := []struct {
		name  string
		conn  func(Connection) Connection
		field string
	}{
		{"valid", func(c Connection) Connection { return c }, ""},
		{"missing backend", func(c Connection) Connection { c.Backend = ""; return c }, "backend"},
		{"missing target", func(c Connection) Connection { c.ConnectString = ""; return c }, "connectString"},
		{"missing user", func(c Connection) Connection { c.User = ""; return c }, "user"},
		{"missing password", func(c Connection) Connection { c.Password = ""; return c }, "password"},
		{"external auth", func(c Connection) Connection { c.User, c.Password, c.ExternalAuth = "", "", true; return c }, ""},
		{"sqlite needs no credentials", func(c Connection) Connection {
			return Connection{Backend: "sqlite", ConnectString: "test.db"}
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conn(valid).Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ce *errs.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConnection_Identity(t *testing.T) {
	a := Connection{Backend: "postgres", ConnectString: "h:5432/db", User: "u", Password: "p", Params: map[string]string{"x": "1", "y": "2"}}
	b := a
	b.Params = map[string]string{"y": "2", "x": "1"}
	assert.Equal(t, a.Identity(), b.Identity())

	c := a
	c.Password = "other"
	assert.NotEqual(t, a.Identity(), c.Identity())

	// field boundaries are part of the digest
	d := Connection{Backend: "postgres", ConnectString: "h:5432/dbu", Password: "p"}
	e := Connection{Backend: "postgres", ConnectString: "h:5432/db", User: "u", Password: "p"}
	assert.NotEqual(t, d.Identity(), e.Identity())
}

func TestLoadConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connectString: db.example.com:1521/ORCLPDB1
user: scott
password: tiger
externalAuth: false
thickMode: true
libDir: /opt/oracle/instantclient
params:
  TIMEOUT: "30"
`), 0o600))

	conn, err := LoadConnection(path)
	require.NoError(t, err)
	assert.Equal(t, "oracle", conn.Backend)
	assert.Equal(t, "db.example.com:1521/ORCLPDB1", conn.ConnectString)
	assert.Equal(t, "scott", conn.User)
	assert.Equal(t, "tiger", conn.Password)
	assert.True(t, conn.ThickMode)
	assert.Equal(t, "/opt/oracle/instantclient", conn.LibDir)
	assert.NoError(t, conn.Validate())
}

func TestLoadConnection_Missing(t *testing.T) {
	_, err := LoadConnection(filepath.Join(t.TempDir(), "nope.yaml"))
	var ce *errs.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SOURCE_BACKEND", "postgres")
	t.Setenv("SOURCE_CONNECT_STRING", "localhost:5432/app")
	t.Setenv("SOURCE_EXTERNAL_AUTH", "true")
	t.Setenv("BATCH_SIZE", "500")
	t.Setenv("COUNT_ROWS", "false")
	t.Setenv("DEFAULT_TIMEOUT", "30s")
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("APP_ENV", "production")

	cfg := Load()
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Equal(t, "postgres", cfg.Connection.Backend)
	assert.Equal(t, "localhost:5432/app", cfg.Connection.ConnectString)
	assert.True(t, cfg.Connection.ExternalAuth)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.False(t, cfg.CountRows)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{AppEnv: "development"}).LogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{AppEnv: "staging"}).LogLevel())

	t.Setenv("APP_ENV", "")
	require.NoError(t, os.Unsetenv("APP_ENV"))
	assert.Equal(t, slog.LevelDebug, Load().LogLevel())
}

func TestSourceConnection(t *testing.T) {
	cfg := &Config{Connection: Connection{Backend: "sqlite", ConnectString: "local.db"}}
	conn, err := cfg.SourceConnection()
	require.NoError(t, err)
	assert.Equal(t, "local.db", conn.ConnectString)

	path := filepath.Join(t.TempDir(), "connection.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":"mysql","connectString":"db:3306/app","user":"u","password":"p"}`), 0o600))
	cfg.ConnectionFile = path

	conn, err = cfg.SourceConnection()
	require.NoError(t, err)
	assert.Equal(t, "mysql", conn.Backend)
	assert.Equal(t, "db:3306/app", conn.ConnectString)
}
