// Package database provides database connection management and utilities.
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Config holds database configuration settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Connect establishes a database connection with the given configuration.
func Connect(cfg Config) (*sql.DB, error) {
	if _, err := ParseDialect(cfg.Driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Dialect identifies the SQL flavour a repository talks to.
// Repositories write queries with PostgreSQL-style "$n" placeholders and call
// Rebind before executing them.
type Dialect string

const (
	// Postgres is the PostgreSQL dialect (lib/pq).
	Postgres Dialect = "postgres"
	// MySQL is the MySQL dialect (go-sql-driver/mysql).
	MySQL Dialect = "mysql"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Rebind converts "$n" placeholders to "?" for MySQL. Arguments must be passed in
// placeholder order, which every repository does. Postgres queries are returned as is.
func (d Dialect) Rebind(query string) string {
	if d != MySQL {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Placeholders tracks positional arguments while a query is assembled dynamically.
type Placeholders struct {
	args []any
}

// Add appends an argument and returns its "$n" placeholder.
func (p *Placeholders) Add(arg any) string {
	p.args = append(p.args, arg)
	return "$" + strconv.Itoa(len(p.args))
}

// Args returns the collected arguments in placeholder order.
func (p *Placeholders) Args() []any {
	return p.args
}
