package storage

import (
	"context"
	"database/sql"

	"github.com/msrptw/backend/internal/infrastructure/seed"
)

// Setup migrates the schema and seeds taxonomy and sources. Safe to rerun.
func (s *Store) Setup(ctx context.Context, f seed.File) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.SeedTaxonomy(ctx, f.Categories); err != nil {
		return err
	}
	return s.SeedSources(ctx, f.Sources)
}

// SeedTaxonomy inserts missing categories, parts and aliases. Existing rows
// keep their ids; positions follow the order given.
func (s *Store) SeedTaxonomy(ctx context.Context, categories []seed.Category) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for ci, c := range categories {
			categoryID, err := s.upsertID(ctx, tx,
				`INSERT INTO categories (name, position) VALUES (?, ?)
				 ON CONFLICT (name) DO UPDATE SET position = excluded.position RETURNING id`,
				c.Name, ci)
			if err != nil {
				return wrapErr("seed category "+c.Name, err)
			}

			for pi, p := range c.Parts {
				partID, err := s.upsertID(ctx, tx,
					`INSERT INTO parts (category_id, name, position) VALUES (?, ?, ?)
					 ON CONFLICT (category_id, name) DO UPDATE SET position = excluded.position RETURNING id`,
					categoryID, p.Name, pi)
				if err != nil {
					return wrapErr("seed part "+p.Name, err)
				}

				if err := s.seedAliases(ctx, tx, partID, p.Aliases, false); err != nil {
					return err
				}
				if err := s.seedAliases(ctx, tx, partID, p.Anti, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) seedAliases(ctx context.Context, tx *sql.Tx, partID int64, names []string, anti bool) error {
	for _, name := range names {
		_, err := s.exec(ctx, tx,
			`INSERT INTO aliases (part_id, name, anti) VALUES (?, ?, ?)
			 ON CONFLICT (part_id, name) DO UPDATE SET anti = excluded.anti`,
			partID, name, anti)
		if err != nil {
			return wrapErr("seed alias "+name, err)
		}
	}
	return nil
}

// SeedSources inserts missing retailers
func (s *Store) SeedSources(ctx context.Context, names []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if _, err := s.exec(ctx, tx,
				`INSERT INTO sources (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
				return wrapErr("seed source "+name, err)
			}
		}
		return nil
	})
}

func (s *Store) upsertID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var id int64
	err := s.queryRow(ctx, q, query, args...).Scan(&id)
	return id, err
}
