// Package sqlxrepos implements the core repositories on PostgreSQL,
// building queries with squirrel and scanning rows with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// selectAll runs q and scans every row into dest, a pointer to a slice of
// db-tagged structs.
func selectAll(ctx context.Context, exec core.DBExecutor, q sq.SelectBuilder, dest interface{}) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "querying")
	}
	defer func() { _ = rows.Close() }()
	return errors.Wrap(sqlx.StructScan(rows, dest), "scanning rows")
}

// execReturning runs an insert/update built with a RETURNING suffix and scans
// the returned row(s) into dest, a pointer to a slice of db-tagged structs.
func execReturning(ctx context.Context, exec core.DBExecutor, query string, args []interface{}, dest interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505" && string(pqErr.Constraint) == constraint
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
