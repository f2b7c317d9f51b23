package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk load into Table.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns in row order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // overwritten on conflict; nil means every non-key column

	// Touch lists extra SET assignments applied on conflict, such as
	// "updated_at = now()".
	Touch []string

	// NewerThan names a column that must not move backwards: a conflicting
	// row only replaces the stored one when its value is at least as large.
	NewerThan string
}

func (cfg UpsertConfig) validate() error {
	if cfg.Table == "" {
		return eris.New("db: upsert: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (cfg UpsertConfig) updateCols() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var cols []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// stagingTable is the temp table rows are copied into before the merge.
func (cfg UpsertConfig) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(cfg.Table, ".", "_")
}

// statements renders the staging DDL and the merge statement.
func (cfg UpsertConfig) statements() (create, merge string) {
	target := sanitizeTable(cfg.Table)
	stage := pgx.Identifier{cfg.stagingTable()}.Sanitize()

	create = fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", stage, target)

	var set []string
	for _, c := range cfg.updateCols() {
		id := pgx.Identifier{c}.Sanitize()
		set = append(set, id+" = EXCLUDED."+id)
	}
	set = append(set, cfg.Touch...)

	cols := quoteAndJoin(cfg.Columns)
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		target, cols, cols, stage, quoteAndJoin(cfg.ConflictKeys))
	if len(set) == 0 {
		b.WriteString("DO NOTHING")
		return create, b.String()
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(set, ", "))
	if cfg.NewerThan != "" {
		id := pgx.Identifier{cfg.NewerThan}.Sanitize()
		fmt.Fprintf(&b, " WHERE EXCLUDED.%s >= %s.%s", id, target, id)
	}
	return create, b.String()
}

// BulkUpsert copies rows into a staging table and merges them into the
// target in one transaction. It returns the number of rows inserted or
// updated; rows skipped by NewerThan are not counted.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	create, merge := cfg.statements()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.stagingTable()}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy %d rows for %s", len(rows), cfg.Table)
	}
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	committed = true
	return tag.RowsAffected(), nil
}

func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
