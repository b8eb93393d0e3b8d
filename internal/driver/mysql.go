package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"querysource/internal/config"
)

// MySQLBackend runs queries through go-sql-driver/mysql.
type MySQLBackend struct{}

func (MySQLBackend) Name() string {
	return "mysql"
}

func (MySQLBackend) Connect(_ context.Context, cfg config.Connection) (Pool, error) {
	dsn, err := mysqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	return openSQL("mysql", dsn)
}

func (MySQLBackend) CountQuery(query string) string {
	return derivedCount(query)
}

func (MySQLBackend) CanaryQuery() string {
	return "SELECT 1"
}

// mysqlDSN accepts a driver DSN ("user:pass@tcp(host:3306)/db") or a
// "host:port/dbname" target. DATE and DATETIME columns are always parsed
// into time.Time.
func mysqlDSN(cfg config.Connection) (string, error) {
	var mc *mysql.Config
	if strings.ContainsAny(cfg.ConnectString, "@(") {
		parsed, err := mysql.ParseDSN(cfg.ConnectString)
		if err != nil {
			return "", fmt.Errorf("invalid connect string: %w", err)
		}
		mc = parsed
	} else {
		addr, db, _ := strings.Cut(cfg.ConnectString, "/")
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = db
	}

	if cfg.User != "" {
		mc.User = cfg.User
	}
	if cfg.Password != "" {
		mc.Passwd = cfg.Password
	}
	mc.ParseTime = true
	if len(cfg.Params) > 0 {
		if mc.Params == nil {
			mc.Params = make(map[string]string, len(cfg.Params))
		}
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN(), nil
}
