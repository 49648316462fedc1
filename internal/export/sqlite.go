package export

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// writeSQLite creates a database file with one table. The index becomes
// an INTEGER PRIMARY KEY; samples are REAL with NULL for missing values.
func writeSQLite(t *Table, path string, opts Options) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	cols := t.Columns()
	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for j, c := range cols {
		quoted[j] = quoteIdent(c)
		defs[j] = quoted[j] + " REAL"
	}
	if t.Index {
		defs[0] = quoted[0] + " INTEGER PRIMARY KEY"
	}

	table := quoteIdent(opts.Table)
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	m := t.Matrix
	args := make([]any, len(cols))
	for r := 0; r < m.NumRows(); r++ {
		j := 0
		if t.Index {
			args[0] = r
			j = 1
		}
		for _, v := range m.Row(r) {
			if math.IsNaN(v) {
				args[j] = nil
			} else {
				args[j] = v
			}
			j++
		}
		if _, err = stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}
	return tx.Commit()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
