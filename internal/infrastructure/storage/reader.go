package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/msrptw/backend/internal/domain"
)

// ListSources returns all retailers ordered by id
func (s *Store) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name FROM sources ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list sources", err)
	}
	defer rows.Close()

	sources := make([]domain.Source, 0)
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.Name); err != nil {
			return nil, wrapErr("scan source", err)
		}
		sources = append(sources, src)
	}
	return sources, wrapErr("list sources", rows.Err())
}

// GetProduct looks a product up by id
func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+productColumns+` FROM products p WHERE p.id = ?`, id)
	product, err := scanProduct(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get product %d", id), err)
	}
	return product, nil
}

// ListProducts returns the products matching filter ordered by id
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.SourceID != 0 {
		where = append(where, "p.source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.CategoryID != 0 {
		where = append(where, "p.part_id IN (SELECT id FROM parts WHERE category_id = ?)")
		args = append(args, filter.CategoryID)
	}
	if filter.Classified != nil {
		if *filter.Classified {
			where = append(where, "p.part_id IS NOT NULL")
		} else {
			where = append(where, "p.part_id IS NULL")
		}
	}

	query := `SELECT ` + productColumns + ` FROM products p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.id"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, wrapErr("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scan product", err)
		}
		products = append(products, *p)
	}
	return products, wrapErr("list products", rows.Err())
}

// ListObservations returns a product's observations from..to inclusive, oldest first
func (s *Store) ListObservations(ctx context.Context, productID int64, from, to time.Time) ([]domain.Observation, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, product_id, day, price FROM observations
		 WHERE product_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		productID, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return nil, wrapErr("list observations", err)
	}
	defer rows.Close()

	observations := make([]domain.Observation, 0)
	for rows.Next() {
		o, err := scanObservation(rows, from.Location())
		if err != nil {
			return nil, wrapErr("scan observation", err)
		}
		observations = append(observations, *o)
	}
	return observations, wrapErr("list observations", rows.Err())
}

// ListPriceRows joins observations with their product, part, category and source
func (s *Store) ListPriceRows(ctx context.Context, from, to time.Time) ([]domain.PriceRow, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT o.day, s.name, COALESCE(c.name, ''), COALESCE(pa.name, ''), p.name, p.origin,
		        p.weight, p.unit, p.count, o.price
		 FROM observations o
		 JOIN products p ON p.id = o.product_id
		 JOIN sources s ON s.id = p.source_id
		 LEFT JOIN parts pa ON pa.id = p.part_id
		 LEFT JOIN categories c ON c.id = pa.category_id
		 WHERE o.day >= ? AND o.day <= ?
		 ORDER BY o.day, s.name, p.name`,
		from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return nil, wrapErr("list price rows", err)
	}
	defer rows.Close()

	result := make([]domain.PriceRow, 0)
	for rows.Next() {
		var (
			row    domain.PriceRow
			day    string
			origin string
			unit   string
			weight sql.NullFloat64
			price  decimal.Decimal
		)
		if err := rows.Scan(&day, &row.Source, &row.Category, &row.Part, &row.Product, &origin,
			&weight, &unit, &row.Count, &price); err != nil {
			return nil, wrapErr("scan price row", err)
		}
		if row.Date, err = parseDay(day, from.Location()); err != nil {
			return nil, wrapErr("parse price row day", err)
		}
		row.Origin = domain.Origin(origin)
		row.Unit = domain.Unit(unit)
		row.Price = price
		if weight.Valid {
			w := weight.Float64
			row.Weight = &w
		}
		result = append(result, row)
	}
	return result, wrapErr("list price rows", rows.Err())
}
