package migrations

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"marketregime/pkg/errors"
)

//go:embed clickhouse/*.sql postgres/*.sql
var embeddedFS embed.FS

// Dialects
const (
	ClickHouse = "clickhouse"
	Postgres   = "postgres"
)

// ExecFunc executes one statement
type ExecFunc func(ctx context.Context, statement string) error

// Statements returns every statement of a dialect in file order. Files hold
// statements separated by semicolons; comment-only chunks are dropped.
func Statements(dialect string) ([]string, error) {
	return statementsFrom(embeddedFS, dialect)
}

func statementsFrom(fsys fs.FS, dialect string) ([]string, error) {
	files, err := fs.Glob(fsys, dialect+"/*.sql")
	if err != nil {
		return nil, errors.Wrapf(err, "list %s migrations", dialect)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no migrations for dialect %q", dialect)
	}
	sort.Strings(files)

	var out []string
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read migration %s", name)
		}
		for _, stmt := range strings.Split(string(data), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" && !commentOnly(stmt) {
				out = append(out, stmt)
			}
		}
	}
	return out, nil
}

// Apply runs every statement of the dialect. Statements are idempotent
// (IF NOT EXISTS), so Apply may run on every start.
func Apply(ctx context.Context, dialect string, exec ExecFunc) error {
	stmts, err := Statements(dialect)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if err := exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "%s migration statement %d", dialect, i+1)
		}
	}
	return nil
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
