package storage

import (
	"context"
	"fmt"
	"strconv"
)

// runMigrations applies every migration above the recorded schema version.
// Each version runs in its own transaction together with the version bump.
func runMigrations(ctx context.Context, d dialect, migrations map[int]string, inTx func(fn func(q querier) error) error) error {
	var current int
	err := inTx(func(q querier) error {
		var val string
		err := q.queryRow(`SELECT value FROM liferpg_meta WHERE key = 'schema_version'`).Scan(&val)
		if d.isNoRows(err) {
			current = 0
			return nil
		}
		if err != nil {
			return err
		}
		current, err = strconv.Atoi(val)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		ddl, ok := migrations[v]
		if !ok {
			return fmt.Errorf("missing migration for version %d", v)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := inTx(func(q querier) error {
			if err := q.exec(ddl); err != nil {
				return err
			}
			return q.exec(
				`INSERT INTO liferpg_meta (key, value) VALUES ('schema_version', ?)
				 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
				strconv.Itoa(v),
			)
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
	}
	return nil
}
