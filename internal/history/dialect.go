package history

import (
	"fmt"
	"strings"
)

// dialect covers the SQL differences between the supported backends.
type dialect struct {
	// driver is the database/sql driver name.
	driver string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	ddl         []string
	// limit wraps a SELECT column list and tail with a row cap.
	limit func(cols, tail string, n int) string
}

const (
	sqliteDDLRuns = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	steps TEXT NOT NULL,
	rows_in INTEGER NOT NULL,
	rows_out INTEGER NOT NULL,
	rows_removed INTEGER NOT NULL,
	warnings TEXT NOT NULL DEFAULT '[]',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`
	sqliteDDLLog = `CREATE TABLE IF NOT EXISTS run_log (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	entry TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
)`
	postgresDDLRuns = `CREATE TABLE IF NOT EXISTS runs (
	id VARCHAR(36) PRIMARY KEY,
	source TEXT NOT NULL,
	status VARCHAR(16) NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	steps TEXT NOT NULL,
	rows_in BIGINT NOT NULL,
	rows_out BIGINT NOT NULL,
	rows_removed BIGINT NOT NULL,
	warnings TEXT NOT NULL DEFAULT '[]',
	started_at VARCHAR(32) NOT NULL,
	finished_at VARCHAR(32) NOT NULL
)`
	postgresDDLLog = `CREATE TABLE IF NOT EXISTS run_log (
	run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	entry TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
)`
	mssqlDDLRuns = `IF OBJECT_ID(N'runs', N'U') IS NULL
CREATE TABLE runs (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	source NVARCHAR(MAX) NOT NULL,
	status VARCHAR(16) NOT NULL,
	error NVARCHAR(MAX) NOT NULL DEFAULT '',
	steps NVARCHAR(MAX) NOT NULL,
	rows_in BIGINT NOT NULL,
	rows_out BIGINT NOT NULL,
	rows_removed BIGINT NOT NULL,
	warnings NVARCHAR(MAX) NOT NULL DEFAULT '[]',
	started_at VARCHAR(32) NOT NULL,
	finished_at VARCHAR(32) NOT NULL
)`
	mssqlDDLLog = `IF OBJECT_ID(N'run_log', N'U') IS NULL
CREATE TABLE run_log (
	run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INT NOT NULL,
	entry NVARCHAR(MAX) NOT NULL,
	PRIMARY KEY (run_id, seq)
)`
)

func questionMark(int) string { return "?" }

func limitClause(cols, tail string, n int) string {
	return fmt.Sprintf("SELECT %s %s LIMIT %d", cols, tail, n)
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:      "sqlite",
		placeholder: questionMark,
		ddl:         []string{sqliteDDLRuns, sqliteDDLLog},
		limit:       limitClause,
	},
	"pgx": {
		driver:      "pgx",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		ddl:         []string{postgresDDLRuns, postgresDDLLog},
		limit:       limitClause,
	},
	"sqlserver": {
		driver:      "sqlserver",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		ddl:         []string{mssqlDDLRuns, mssqlDDLLog},
		limit: func(cols, tail string, n int) string {
			return fmt.Sprintf("SELECT TOP (%d) %s %s", n, cols, tail)
		},
	},
}

// lookupDialect resolves a configured driver name; "postgres" and
// "postgresql" are accepted for pgx and "mssql" for sqlserver.
func lookupDialect(name string) (dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], true
	case "pgx", "postgres", "postgresql":
		return dialects["pgx"], true
	case "sqlserver", "mssql":
		return dialects["sqlserver"], true
	default:
		return dialect{}, false
	}
}

// bind rewrites each '?' in q to the dialect's placeholder.
func (d dialect) bind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
