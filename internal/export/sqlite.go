package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/petrolab/psb/internal/explorer"
	"github.com/petrolab/psb/internal/grid"
)

const schema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE points (
	id INTEGER PRIMARY KEY,
	section INTEGER NOT NULL,
	row INTEGER NOT NULL,
	col INTEGER NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	status TEXT NOT NULL,
	key TEXT,
	delta REAL
);
CREATE TABLE "values" (
	point_id INTEGER NOT NULL REFERENCES points(id),
	phase TEXT NOT NULL,
	var TEXT NOT NULL,
	value REAL NOT NULL
);
CREATE INDEX idx_values_point ON "values"(point_id);
CREATE INDEX idx_values_phase ON "values"(phase, var);
`

// SQLite writes the grid calculations of every section into a new
// database at path. An existing file is replaced. It returns the number
// of points written.
func SQLite(ctx context.Context, path string, e *explorer.Explorer) (int, error) {
	if !e.Gridded() {
		return 0, fmt.Errorf("sqlite: not yet gridded")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("sqlite: removing old database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("sqlite: creating tables: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		"name":   e.Name(),
		"kind":   string(e.Kind()),
		"xvar":   e.Kind().XVar(),
		"yvar":   e.Kind().YVar(),
		"tc":     e.Settings.Version(),
		"excess": e.Excess().Key(),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return 0, fmt.Errorf("sqlite: writing meta: %w", err)
		}
	}

	pointStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (id, section, row, col, x, y, status, key, delta) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer pointStmt.Close()
	valueStmt, err := tx.PrepareContext(ctx, `INSERT INTO "values" (point_id, phase, var, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer valueStmt.Close()

	id := 0
	for ix, s := range e.Sections {
		g := s.Grid()
		for r, row := range g.Status {
			for c, st := range row {
				id++
				x, y := g.Point(r, c)
				var key, delta any
				if k, ok := s.Shapes.Identify(x, y); ok {
					key = k.Key()
				}
				if st == grid.OK {
					delta = g.Delta[r][c]
				}
				if _, err := pointStmt.ExecContext(ctx, id, ix+1, r, c, x, y, st.String(), key, delta); err != nil {
					return 0, fmt.Errorf("sqlite: writing point: %w", err)
				}
				if st != grid.OK || g.Calcs[r][c] == nil {
					continue
				}
				data := g.Calcs[r][c].Data
				for _, ph := range sortedKeys(data) {
					for _, v := range sortedKeys(data[ph]) {
						if _, err := valueStmt.ExecContext(ctx, id, ph, v, data[ph][v]); err != nil {
							return 0, fmt.Errorf("sqlite: writing values: %w", err)
						}
					}
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return id, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
