// SPDX-License-Identifier: MPL-2.0

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixienv/pixienv/pkg/shellexport"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspace_state (
	workspace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (workspace, key)
);
CREATE TABLE IF NOT EXISTS environment_variables (
	workspace TEXT    NOT NULL,
	key       TEXT    NOT NULL,
	value     TEXT    NOT NULL,
	seq       INTEGER NOT NULL,
	PRIMARY KEY (workspace, key)
);
`

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type (
	// Memento is a per-workspace key/value store. Get reports ok == false
	// for a key that was never set or was deleted.
	Memento interface {
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key, value string) error
		Delete(ctx context.Context, key string) error
	}

	// Store is the SQLite-backed state database.
	Store struct {
		db *sql.DB
	}

	// Workspace scopes the Store to one workspace root.
	Workspace struct {
		db   *sql.DB
		root string
	}

	// VariableCollection is the persisted variable-injection surface of one
	// workspace.
	VariableCollection struct {
		db   *sql.DB
		root string
	}
)

// Open opens (creating if needed) the database at path and applies the
// schema. Use MemoryPath for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers without SQLITE_BUSY handling.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("apply state schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Workspace returns the state of the workspace rooted at root. The root is
// made absolute and cleaned so equivalent spellings share state.
func (s *Store) Workspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %q: %w", root, err)
	}
	return &Workspace{db: s.db, root: filepath.Clean(abs)}, nil
}

// Root returns the normalized workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Get implements Memento.
func (w *Workspace) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := w.db.QueryRowContext(ctx,
		`SELECT value FROM workspace_state WHERE workspace = ? AND key = ?`,
		w.root, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read state %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Memento.
func (w *Workspace) Set(ctx context.Context, key, value string) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO workspace_state (workspace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (workspace, key) DO UPDATE SET value = excluded.value`,
		w.root, key, value,
	)
	if err != nil {
		return fmt.Errorf("write state %q: %w", key, err)
	}
	return nil
}

// Delete implements Memento.
func (w *Workspace) Delete(ctx context.Context, key string) error {
	_, err := w.db.ExecContext(ctx,
		`DELETE FROM workspace_state WHERE workspace = ? AND key = ?`,
		w.root, key,
	)
	if err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// Variables returns the workspace's variable-injection collection.
func (w *Workspace) Variables() *VariableCollection {
	return &VariableCollection{db: w.db, root: w.root}
}

// Replace sets key to value, replacing any previous value. A replaced key
// keeps its original position.
func (c *VariableCollection) Replace(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO environment_variables (workspace, key, value, seq)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM environment_variables WHERE workspace = ?))
		 ON CONFLICT (workspace, key) DO UPDATE SET value = excluded.value`,
		c.root, key, value, c.root,
	)
	if err != nil {
		return fmt.Errorf("replace variable %q: %w", key, err)
	}
	return nil
}

// Clear removes every variable of the workspace.
func (c *VariableCollection) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM environment_variables WHERE workspace = ?`, c.root); err != nil {
		return fmt.Errorf("clear variables: %w", err)
	}
	return nil
}

// Entries returns the variables in the order they were first applied.
func (c *VariableCollection) Entries(ctx context.Context) ([]shellexport.VariableUpdate, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, value FROM environment_variables WHERE workspace = ? ORDER BY seq`,
		c.root,
	)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	var entries []shellexport.VariableUpdate
	for rows.Next() {
		var entry shellexport.VariableUpdate
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	return entries, nil
}
