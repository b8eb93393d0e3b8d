package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	"querysource/internal/config"
)

// OracleBackend runs queries through the pure-Go go-ora client.
type OracleBackend struct{}

func (OracleBackend) Name() string {
	return "oracle"
}

func (OracleBackend) Connect(_ context.Context, cfg config.Connection) (Pool, error) {
	if cfg.ThickMode {
		slog.Warn("Thick mode requested but go-ora is a thin client, ignoring", "lib_dir", cfg.LibDir)
	}
	dsn, err := oracleURL(cfg)
	if err != nil {
		return nil, err
	}
	return openSQL("oracle", dsn)
}

func (OracleBackend) CountQuery(query string) string {
	return cteCount(query)
}

func (OracleBackend) CanaryQuery() string {
	return "SELECT 1 FROM DUAL"
}

// oracleURL accepts an oracle:// URL, an easy-connect "host:port/service"
// target, a TNS descriptor, or an alias from ConfigDir/tnsnames.ora. A wallet
// in ConfigDir is passed to go-ora.
func oracleURL(cfg config.Connection) (string, error) {
	if strings.HasPrefix(cfg.ConnectString, "oracle://") {
		return cfg.ConnectString, nil
	}

	options := make(map[string]string, len(cfg.Params)+2)
	for k, v := range cfg.Params {
		options[k] = v
	}
	if cfg.ExternalAuth {
		options["AUTH TYPE"] = "OS"
	}
	if _, set := options["WALLET"]; !set && hasWallet(cfg.ConfigDir) {
		options["WALLET"] = cfg.ConfigDir
	}

	host, port, service, err := splitTarget(cfg.ConnectString, 1521)
	if err == nil {
		return go_ora.BuildUrl(host, port, service, cfg.User, cfg.Password, options), nil
	}

	connStr := cfg.ConnectString
	if cfg.ConfigDir != "" && !strings.Contains(connStr, "(") {
		if connStr, err = tnsDescriptor(cfg.ConfigDir, connStr); err != nil {
			return "", err
		}
	}
	return go_ora.BuildJDBC(cfg.User, cfg.Password, connStr, options), nil
}

func hasWallet(dir string) bool {
	if dir == "" {
		return false
	}
	for _, name := range []string{"cwallet.sso", "ewallet.p12"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// tnsDescriptor resolves alias against dir/tnsnames.ora.
func tnsDescriptor(dir, alias string) (string, error) {
	path := filepath.Join(dir, "tnsnames.ora")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read tnsnames.ora: %w", err)
	}
	desc, ok := parseTNSNames(string(data))[strings.ToUpper(strings.TrimSpace(alias))]
	if !ok {
		return "", fmt.Errorf("alias %q not found in %s", alias, path)
	}
	return desc, nil
}

// parseTNSNames maps every upper-cased alias in a tnsnames.ora file to its
// descriptor with whitespace removed. "A, B = (...)" defines two aliases.
func parseTNSNames(text string) map[string]string {
	var b strings.Builder
	for line := range strings.Lines(text) {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i] + "\n"
		}
		b.WriteString(line)
	}

	out := make(map[string]string)
	s := b.String()
	for {
		names, rest, ok := strings.Cut(s, "=")
		if !ok {
			break
		}
		rest = strings.TrimLeft(rest, " \t\r\n")
		end := closingParen(rest)
		if end < 0 {
			break
		}
		desc := strings.Join(strings.Fields(rest[:end+1]), "")
		for _, name := range strings.Split(names, ",") {
			if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
				out[name] = desc
			}
		}
		s = rest[end+1:]
	}
	return out
}

// closingParen returns the index of the parenthesis that closes s[0], or -1.
func closingParen(s string) int {
	if !strings.HasPrefix(s, "(") {
		return -1
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTarget parses "host[:port]/name".
func splitTarget(target string, defaultPort int) (host string, port int, name string, err error) {
	hostPort, name, ok := strings.Cut(target, "/")
	if !ok || hostPort == "" || strings.ContainsAny(target, "()=") {
		return "", 0, "", fmt.Errorf("target %q is not host:port/name", target)
	}
	host, portStr, hasPort := strings.Cut(hostPort, ":")
	port = defaultPort
	if hasPort {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, "", fmt.Errorf("invalid port in %q: %w", target, err)
		}
	}
	return host, port, name, nil
}
