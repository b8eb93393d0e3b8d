package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/viper"

	"querysource/internal/errs"
)

// Connection holds the options a host supplies for one source database.
type Connection struct {
	// Backend selects the driver adapter: oracle, postgres, pgx, mysql, sqlite or hive.
	Backend string `mapstructure:"backend"`
	// ConnectString is the connection target, e.g. "host:1521/service" or a
	// sqlite file path.
	ConnectString string `mapstructure:"connectString"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	// ExternalAuth delegates authentication to the operating system.
	ExternalAuth bool `mapstructure:"externalAuth"`
	// ThickMode requests the native client library. LibDir is its location.
	ThickMode bool   `mapstructure:"thickMode"`
	LibDir    string `mapstructure:"libDir"`
	// ConfigDir is the client configuration directory (tnsnames.ora etc).
	ConfigDir string `mapstructure:"configDir"`
	// Params are passed to the backend as extra DSN parameters.
	Params map[string]string `mapstructure:"params"`
	// ReadOnlyGuard rejects anything but a single SELECT before execution.
	ReadOnlyGuard bool `mapstructure:"readOnlyGuard"`
}

// fileBackends open a local file and take no credentials.
var fileBackends = []string{"sqlite"}

var errRequired = errors.New("required option is missing")

// Validate checks the required fields. It returns an *errs.ConfigurationError.
func (c Connection) Validate() error {
	if c.Backend == "" {
		return &errs.ConfigurationError{Field: "backend", Cause: errRequired}
	}
	if c.ConnectString == "" {
		return &errs.ConfigurationError{Field: "connectString", Cause: errRequired}
	}
	if c.ExternalAuth || slices.Contains(fileBackends, c.Backend) {
		return nil
	}
	if c.User == "" {
		return &errs.ConfigurationError{Field: "user", Cause: errRequired}
	}
	if c.Password == "" {
		return &errs.ConfigurationError{Field: "password", Cause: errRequired}
	}
	return nil
}

// Identity is a stable digest of every option that affects how a pool is
// built. Two connections with the same identity share a pool.
func (c Connection) Identity() string {
	h := sha256.New()
	write := func(s string) {
		fmt.Fprintf(h, "%d:%s;", len(s), s)
	}
	write(c.Backend)
	write(c.ConnectString)
	write(c.User)
	write(c.Password)
	write(strconv.FormatBool(c.ExternalAuth))
	write(strconv.FormatBool(c.ThickMode))
	write(c.LibDir)
	write(c.ConfigDir)

	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		write(k)
		write(c.Params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LoadConnection reads connection options from a YAML, JSON or TOML file.
func LoadConnection(path string) (Connection, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("backend", "oracle")

	if err := v.ReadInConfig(); err != nil {
		return Connection{}, &errs.ConfigurationError{Cause: fmt.Errorf("read %s: %w", path, err)}
	}

	var conn Connection
	if err := v.Unmarshal(&conn); err != nil {
		return Connection{}, &errs.ConfigurationError{Cause: fmt.Errorf("unmarshal %s: %w", path, err)}
	}
	return conn, nil
}
