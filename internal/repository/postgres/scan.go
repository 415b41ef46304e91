package postgres

import (
	"database/sql"

	"brain2-canvas/internal/domain"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanDot(row scannable) (*domain.Dot, error) {
	var (
		d        domain.Dot
		wheelID  sql.NullString
		chakraID sql.NullString
		x, y     sql.NullFloat64
	)
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Summary, &d.Note, &d.Mood,
		&wheelID, &chakraID, &x, &y, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Position = positionFrom(x, y)
	switch {
	case wheelID.Valid:
		d.Parent = &domain.ParentRef{Kind: domain.KindWheel, ID: wheelID.String}
	case chakraID.Valid:
		d.Parent = &domain.ParentRef{Kind: domain.KindChakra, ID: chakraID.String}
	}
	return &d, nil
}

func scanWheel(row scannable) (*domain.Wheel, error) {
	var (
		w        domain.Wheel
		chakraID sql.NullString
		x, y     sql.NullFloat64
	)
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Heading, &w.Description,
		&chakraID, &x, &y, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.ChakraID = chakraID.String
	w.Position = positionFrom(x, y)
	return &w, nil
}

func scanChakra(row scannable) (*domain.Chakra, error) {
	var (
		c    domain.Chakra
		x, y sql.NullFloat64
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Heading, &c.Purpose, &x, &y, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Position = positionFrom(x, y)
	return &c, nil
}

func positionFrom(x, y sql.NullFloat64) *domain.Position {
	if !x.Valid || !y.Valid {
		return nil
	}
	return &domain.Position{X: x.Float64, Y: y.Float64}
}

func positionArgs(p *domain.Position) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.X, Valid: true}, sql.NullFloat64{Float64: p.Y, Valid: true}
}

// nullString converts an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
