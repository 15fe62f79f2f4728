package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/tuition/core"
)

const (
	lq = `"`
	rq = `"`
)

// getExec returns the executor a repository method runs on: the transaction handed by the caller, else db.
// Transactions must come from database.NewTransactor (they are *sqlx.Tx).
func getExec(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if ext, ok := exec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// where accumulates AND-ed conditions using `?` bind vars; slices are expanded by sqlx.In.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// in restricts col to ids. nil ids means no restriction while an empty slice matches nothing.
func (w *where) in(col string, ids []string) {
	if ids == nil {
		return
	}
	if len(ids) == 0 {
		w.add("FALSE")
		return
	}
	w.add(col+" IN (?)", ids)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// bind expands the `IN (?)` args of query and rebinds it for ext's driver.
func bind(ext sqlx.ExtContext, query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query args")
	}
	return ext.Rebind(query), args, nil
}

func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// insertQuery builds a multi-row INSERT of rows rows of cols, returning every column.
func insertQuery(table string, cols []string, rows int) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s%s%s) VALUES %s RETURNING *",
		table,
		lq, strings.Join(cols, rq+","+lq), rq,
		strmangle.Placeholders(true, len(cols)*rows, 1, len(cols)),
	)
}

// updateQuery builds an UPDATE of cols for the row with the given id (last bind var), returning every column.
func updateQuery(table string, cols []string) string {
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d RETURNING *",
		table,
		strmangle.SetParamNames(lq, rq, 1, cols),
		len(cols)+1,
	)
}

func count(ctx context.Context, ext sqlx.ExtContext, query string, args []interface{}) (int, error) {
	query, args, err := bind(ext, query, args)
	if err != nil {
		return 0, err
	}
	var cnt int
	if err = sqlx.GetContext(ctx, ext, &cnt, query, args...); err != nil {
		return 0, err
	}
	return cnt, nil
}
