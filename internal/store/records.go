package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Record is one row of the names table.
type Record struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Create inserts a record and returns it with its assigned id.
//
// A name that is empty after trimming whitespace is not an error: nothing is
// written and ok is false. Names are stored exactly as given.
func (h *Handle) Create(ctx context.Context, name string) (rec Record, ok bool, err error) {
	f, err := h.acquire("create")
	if err != nil {
		return Record{}, false, err
	}
	defer f.mu.Unlock()

	if isBlank(name) {
		return Record{}, false, nil
	}

	result, err := f.db.ExecContext(ctx, `INSERT INTO names (name) VALUES (?)`, name)
	if err != nil {
		return Record{}, false, newError(CodeStorageUnavailable, "create", f.name, fmt.Errorf("insert: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Record{}, false, newError(CodeStorageUnavailable, "create", f.name, fmt.Errorf("last insert id: %w", err))
	}

	return Record{ID: id, Name: name}, true, nil
}

// List returns every record in insertion order.
// Returns an empty slice (not nil) when the table is empty.
func (h *Handle) List(ctx context.Context) ([]Record, error) {
	f, err := h.acquire("list")
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	rows, err := f.db.QueryContext(ctx, `SELECT id, name FROM names ORDER BY id ASC`)
	if err != nil {
		return nil, newError(CodeStorageUnavailable, "list", f.name, fmt.Errorf("query names: %w", err))
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec  Record
			name sql.NullString // imported files may hold NULL names
		)
		if err := rows.Scan(&rec.ID, &name); err != nil {
			return nil, newError(CodeStorageUnavailable, "list", f.name, fmt.Errorf("scan name: %w", err))
		}
		rec.Name = name.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, newError(CodeStorageUnavailable, "list", f.name, fmt.Errorf("iterate names: %w", err))
	}

	return records, nil
}

// Update renames the record with the given id.
// Returns false without writing if newName is blank or no such record exists.
func (h *Handle) Update(ctx context.Context, id int64, newName string) (bool, error) {
	f, err := h.acquire("update")
	if err != nil {
		return false, err
	}
	defer f.mu.Unlock()

	if isBlank(newName) {
		return false, nil
	}

	result, err := f.db.ExecContext(ctx, `UPDATE names SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		return false, newError(CodeStorageUnavailable, "update", f.name, fmt.Errorf("update: %w", err))
	}
	return affected(result, "update", f.name)
}

// Delete removes the record with the given id.
// Returns whether a record existed and was removed.
func (h *Handle) Delete(ctx context.Context, id int64) (bool, error) {
	f, err := h.acquire("delete")
	if err != nil {
		return false, err
	}
	defer f.mu.Unlock()

	result, err := f.db.ExecContext(ctx, `DELETE FROM names WHERE id = ?`, id)
	if err != nil {
		return false, newError(CodeStorageUnavailable, "delete", f.name, fmt.Errorf("delete: %w", err))
	}
	return affected(result, "delete", f.name)
}

func affected(result sql.Result, op, name string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, newError(CodeStorageUnavailable, op, name, fmt.Errorf("rows affected: %w", err))
	}
	return n > 0, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
