package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect describes the SQL flavour of an opened database
type Dialect struct {
	Driver string // "pgx" or "sqlite"
}

var (
	DialectPostgres = Dialect{Driver: "pgx"}
	DialectSQLite   = Dialect{Driver: "sqlite"}
)

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d.Driver != DialectPostgres.Driver {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ResolveDatabaseURL maps a database URL to a driver dialect and DSN.
// postgres:// and postgresql:// use pgx; sqlite://, file: and bare paths use SQLite.
// SQLite databases are opened read-write but never created.
func ResolveDatabaseURL(url string) (Dialect, string, error) {
	switch {
	case url == "":
		return Dialect{}, "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DialectPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return DialectSQLite, sqliteDSN(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "file:"):
		return DialectSQLite, url, nil
	case strings.Contains(url, "://"):
		return Dialect{}, "", fmt.Errorf("unsupported database url scheme: %s", url[:strings.Index(url, "://")])
	default:
		return DialectSQLite, sqliteDSN(url), nil
	}
}

func sqliteDSN(path string) string {
	return "file:" + path + "?mode=rw"
}

// OpenDatabase opens a single-connection handle to the database at url and
// verifies it is reachable within ctx.
func OpenDatabase(ctx context.Context, url string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ResolveDatabaseURL(url)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("database ping failed: %w", err)
	}

	return db, dialect, nil
}

// RedactDatabaseURL hides the password of a database URL for display.
func RedactDatabaseURL(url string) string {
	scheme := strings.Index(url, "://")
	at := strings.LastIndex(url, "@")
	if scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return url[:scheme+3] + creds[:colon] + ":****" + url[at:]
	}
	return url
}
