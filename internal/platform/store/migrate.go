package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"
)

//go:embed schema/schema.sql
var schemaSQL string

// SchemaVersion is bumped whenever schema.sql changes shape
const SchemaVersion = 1

// Migrate applies the embedded schema inside one transaction. It is idempotent
func Migrate(ctx context.Context, db TxRunner) error {
	return db.Tx(ctx, func(q RowQuerier) error {
		for i, stmt := range statements(schemaSQL) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: statement %d: %w", i+1, err)
			}
		}
		_, err := q.Exec(ctx, `
			INSERT INTO schema_migrations (version, applied_unix)
			VALUES ($1, $2)
			ON CONFLICT (version) DO NOTHING
		`, SchemaVersion, time.Now().Unix())
		return err
	})
}

// statements splits a script on ';' and drops comment-only chunks
func statements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var keep []string
		for _, line := range strings.Split(chunk, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				keep = append(keep, line)
			}
		}
		if len(keep) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(keep, "\n")))
		}
	}
	return out
}
