package books

import (
	"context"
	"database/sql"

	"github.com/FocuswithJustin/expander/core/errors"
)

const aliasSchema = `CREATE TABLE IF NOT EXISTS book_aliases (
	series   TEXT    NOT NULL,
	code     TEXT    NOT NULL,
	alias    TEXT    NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (code, alias)
)`

// SaveSQL replaces the catalog stored in db with books. Row order is kept
// in the position column so LoadSQL returns books in the same order.
func SaveSQL(ctx context.Context, db *sql.DB, books []Book) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin catalog transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, aliasSchema); err != nil {
		return errors.Wrap(err, "create book_aliases")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_aliases`); err != nil {
		return errors.Wrap(err, "clear book_aliases")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO book_aliases (series, code, alias, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare alias insert")
	}
	defer stmt.Close()

	pos := 0
	for _, b := range books {
		aliases := b.Aliases
		if len(aliases) == 0 {
			aliases = []string{b.Code}
		}
		for _, alias := range aliases {
			if _, err := stmt.ExecContext(ctx, string(b.Series), b.Code, alias, pos); err != nil {
				return errors.Wrapf(err, "insert alias %q for %s", alias, b.Code)
			}
			pos++
		}
	}

	return tx.Commit()
}

// LoadSQL reads a catalog written by SaveSQL.
func LoadSQL(ctx context.Context, db *sql.DB) ([]Book, error) {
	rows, err := db.QueryContext(ctx, `SELECT series, code, alias FROM book_aliases ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "query book_aliases")
	}
	defer rows.Close()

	var books []Book
	index := make(map[string]int)
	for rows.Next() {
		var series, code, alias string
		if err := rows.Scan(&series, &code, &alias); err != nil {
			return nil, errors.Wrap(err, "scan book alias")
		}
		i, ok := index[code]
		if !ok {
			i = len(books)
			index[code] = i
			books = append(books, Book{Code: code, Series: Series(series)})
		}
		books[i].Aliases = append(books[i].Aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read book_aliases")
	}
	if len(books) == 0 {
		return nil, errors.NewNotFound("catalog", "book_aliases")
	}
	return books, nil
}
