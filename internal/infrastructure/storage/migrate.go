package storage

import (
	"context"
	"strings"
)

type columnTypes struct {
	serial  string
	boolean string
	float   string
	money   string
}

var dialectTypes = map[Dialect]columnTypes{
	DialectSQLite: {
		serial:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		boolean: "INTEGER NOT NULL DEFAULT 0",
		float:   "REAL",
		money:   "TEXT NOT NULL",
	},
	DialectPostgres: {
		serial:  "BIGSERIAL PRIMARY KEY",
		boolean: "BOOLEAN NOT NULL DEFAULT FALSE",
		float:   "DOUBLE PRECISION",
		money:   "NUMERIC(12,2) NOT NULL",
	},
}

// Days are stored as YYYY-MM-DD text so both dialects compare them the same way
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id {serial},
		name TEXT NOT NULL UNIQUE,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS parts (
		id {serial},
		category_id BIGINT NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (category_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS aliases (
		id {serial},
		part_id BIGINT NOT NULL REFERENCES parts(id),
		name TEXT NOT NULL,
		anti {boolean},
		UNIQUE (part_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id {serial},
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id {serial},
		external_id TEXT NOT NULL,
		source_id BIGINT NOT NULL REFERENCES sources(id),
		name TEXT NOT NULL,
		origin TEXT NOT NULL,
		part_id BIGINT REFERENCES parts(id),
		alias_id BIGINT REFERENCES aliases(id),
		weight {float},
		unit TEXT NOT NULL DEFAULT '',
		count INTEGER NOT NULL DEFAULT 1,
		reference TEXT NOT NULL DEFAULT '',
		UNIQUE (external_id, source_id)
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id {serial},
		product_id BIGINT NOT NULL REFERENCES products(id),
		day TEXT NOT NULL,
		price {money},
		UNIQUE (product_id, day)
	)`,
	`CREATE INDEX IF NOT EXISTS observations_day_idx ON observations (day)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id {serial},
		logger TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		fields TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,
}

// Migrate creates any missing tables. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	types := dialectTypes[s.dialect]
	replacer := strings.NewReplacer(
		"{serial}", types.serial,
		"{boolean}", types.boolean,
		"{float}", types.float,
		"{money}", types.money,
	)

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return wrapErr("migrate", err)
		}
	}
	return nil
}
