package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/msrptw/backend/internal/domain"
)

const productColumns = `p.id, p.external_id, p.source_id, p.name, p.origin, p.part_id, p.alias_id, p.weight, p.unit, p.count, p.reference`

// LoadTaxonomy returns categories, parts and aliases in position order
func (s *Store) LoadTaxonomy(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]*domain.Category, len(categories))
	for i := range categories {
		index[categories[i].ID] = &categories[i]
	}

	parts, err := s.loadParts(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := s.loadAliases(ctx)
	if err != nil {
		return nil, err
	}

	for _, part := range parts {
		part.Aliases = aliases[part.ID]
		if c, ok := index[part.CategoryID]; ok {
			c.Parts = append(c.Parts, part)
		}
	}
	return categories, nil
}

func (s *Store) loadCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, position FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, wrapErr("load categories", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Position); err != nil {
			return nil, wrapErr("scan category", err)
		}
		categories = append(categories, c)
	}
	return categories, wrapErr("load categories", rows.Err())
}

func (s *Store) loadParts(ctx context.Context) ([]domain.Part, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, category_id, name, position FROM parts ORDER BY category_id, position, id`)
	if err != nil {
		return nil, wrapErr("load parts", err)
	}
	defer rows.Close()

	var parts []domain.Part
	for rows.Next() {
		var p domain.Part
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Position); err != nil {
			return nil, wrapErr("scan part", err)
		}
		parts = append(parts, p)
	}
	return parts, wrapErr("load parts", rows.Err())
}

func (s *Store) loadAliases(ctx context.Context) (map[int64][]domain.Alias, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, part_id, name, anti FROM aliases ORDER BY part_id, id`)
	if err != nil {
		return nil, wrapErr("load aliases", err)
	}
	defer rows.Close()

	aliases := make(map[int64][]domain.Alias)
	for rows.Next() {
		var a domain.Alias
		if err := rows.Scan(&a.ID, &a.PartID, &a.Name, &a.Anti); err != nil {
			return nil, wrapErr("scan alias", err)
		}
		aliases[a.PartID] = append(aliases[a.PartID], a)
	}
	return aliases, wrapErr("load aliases", rows.Err())
}

// FindSource looks a retailer up by name
func (s *Store) FindSource(ctx context.Context, name string) (*domain.Source, error) {
	var src domain.Source
	err := s.queryRow(ctx, s.db, `SELECT id, name FROM sources WHERE name = ?`, name).Scan(&src.ID, &src.Name)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("find source %q", name), err)
	}
	return &src, nil
}

// FindProduct looks a product up by its retailer key
func (s *Store) FindProduct(ctx context.Context, externalID string, sourceID int64) (*domain.Product, error) {
	row := s.queryRow(ctx, s.db,
		`SELECT `+productColumns+` FROM products p WHERE p.external_id = ? AND p.source_id = ?`,
		externalID, sourceID)
	product, err := scanProduct(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("find product %s/%d", externalID, sourceID), err)
	}
	return product, nil
}

// SaveProduct inserts a new product (ID == 0) or updates a stored one.
// Inserting a key that already exists returns domain.ErrConflict.
func (s *Store) SaveProduct(ctx context.Context, product *domain.Product) error {
	args := []any{
		product.ExternalID, product.SourceID, product.Name, string(product.Origin),
		nullInt(product.PartID), nullInt(product.AliasID), nullFloat(product.Weight),
		string(product.Unit), product.Count, product.Reference,
	}

	if product.ID != 0 {
		res, err := s.exec(ctx, s.db,
			`UPDATE products SET external_id = ?, source_id = ?, name = ?, origin = ?, part_id = ?,
			 alias_id = ?, weight = ?, unit = ?, count = ?, reference = ? WHERE id = ?`,
			append(args, product.ID)...)
		if err != nil {
			return wrapErr(fmt.Sprintf("update product %d", product.ID), err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update product %d: %w", product.ID, domain.ErrNotFound)
		}
		return nil
	}

	var id int64
	err := s.queryRow(ctx, s.db,
		`INSERT INTO products (external_id, source_id, name, origin, part_id, alias_id, weight, unit, count, reference)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_id, source_id) DO NOTHING RETURNING id`,
		args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("insert product %s/%d: %w", product.ExternalID, product.SourceID, domain.ErrConflict)
	}
	if err != nil {
		return wrapErr(fmt.Sprintf("insert product %s/%d", product.ExternalID, product.SourceID), err)
	}
	product.ID = id
	return nil
}

// FindObservation looks up the observation of a product on the day of date
func (s *Store) FindObservation(ctx context.Context, productID int64, date time.Time) (*domain.Observation, error) {
	day := date.Format(domain.DateLayout)
	row := s.queryRow(ctx, s.db,
		`SELECT id, product_id, day, price FROM observations WHERE product_id = ? AND day = ?`,
		productID, day)
	observation, err := scanObservation(row, date.Location())
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("find observation %d@%s", productID, day), err)
	}
	return observation, nil
}

// SaveObservation upserts by (product, day); the last write wins
func (s *Store) SaveObservation(ctx context.Context, observation *domain.Observation) error {
	day := observation.DateKey()
	price := observation.Price.StringFixed(2)

	if observation.ID != 0 {
		_, err := s.exec(ctx, s.db,
			`UPDATE observations SET product_id = ?, day = ?, price = ? WHERE id = ?`,
			observation.ProductID, day, price, observation.ID)
		return wrapErr(fmt.Sprintf("update observation %d", observation.ID), err)
	}

	var id int64
	err := s.queryRow(ctx, s.db,
		`INSERT INTO observations (product_id, day, price) VALUES (?, ?, ?)
		 ON CONFLICT (product_id, day) DO UPDATE SET price = excluded.price RETURNING id`,
		observation.ProductID, day, price).Scan(&id)
	if err != nil {
		return wrapErr(fmt.Sprintf("upsert observation %d@%s", observation.ProductID, day), err)
	}
	observation.ID = id
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p       domain.Product
		origin  string
		unit    string
		partID  sql.NullInt64
		aliasID sql.NullInt64
		weight  sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.ExternalID, &p.SourceID, &p.Name, &origin,
		&partID, &aliasID, &weight, &unit, &p.Count, &p.Reference); err != nil {
		return nil, err
	}
	p.Origin = domain.Origin(origin)
	p.Unit = domain.Unit(unit)
	if partID.Valid {
		p.PartID = &partID.Int64
	}
	if aliasID.Valid {
		p.AliasID = &aliasID.Int64
	}
	if weight.Valid {
		p.Weight = &weight.Float64
	}
	return &p, nil
}

func scanObservation(row scanner, loc *time.Location) (*domain.Observation, error) {
	var (
		o     domain.Observation
		day   string
		price decimal.Decimal
	)
	if err := row.Scan(&o.ID, &o.ProductID, &day, &price); err != nil {
		return nil, err
	}
	date, err := parseDay(day, loc)
	if err != nil {
		return nil, err
	}
	o.Date = date
	o.Price = price
	return &o, nil
}

func parseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(domain.DateLayout, day, loc)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
