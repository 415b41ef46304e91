package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brain2-canvas/internal/domain"
)

const (
	dotColumns    = `id, owner_id, summary, note, mood, wheel_id, chakra_id, pos_x, pos_y, created_at, updated_at`
	wheelColumns  = `id, owner_id, heading, description, chakra_id, pos_x, pos_y, created_at, updated_at`
	chakraColumns = `id, owner_id, heading, purpose, pos_x, pos_y, created_at, updated_at`
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindDot:
		return "dots", nil
	case domain.KindWheel:
		return "wheels", nil
	case domain.KindChakra:
		return "chakras", nil
	}
	return "", domain.ErrInvalidKind
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// expectOne turns a zero-row update into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func queryGetDot(ctx context.Context, db executor, ownerID, id string) (*domain.Dot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dotColumns+` FROM dots WHERE id = $1 AND owner_id = $2`, id, ownerID)
	d, err := scanDot(row)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func queryGetWheel(ctx context.Context, db executor, ownerID, id string) (*domain.Wheel, error) {
	row := db.QueryRowContext(ctx, `SELECT `+wheelColumns+` FROM wheels WHERE id = $1 AND owner_id = $2`, id, ownerID)
	w, err := scanWheel(row)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func queryGetChakra(ctx context.Context, db executor, ownerID, id string) (*domain.Chakra, error) {
	row := db.QueryRowContext(ctx, `SELECT `+chakraColumns+` FROM chakras WHERE id = $1 AND owner_id = $2`, id, ownerID)
	c, err := scanChakra(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func queryListDots(ctx context.Context, db executor, ownerID string) ([]*domain.Dot, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+dotColumns+` FROM dots WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list dots: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Dot, 0)
	for rows.Next() {
		d, err := scanDot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func queryListWheels(ctx context.Context, db executor, ownerID string) ([]*domain.Wheel, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+wheelColumns+` FROM wheels WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wheels: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Wheel, 0)
	for rows.Next() {
		w, err := scanWheel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func queryListChakras(ctx context.Context, db executor, ownerID string) ([]*domain.Chakra, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+chakraColumns+` FROM chakras WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chakras: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Chakra, 0)
	for rows.Next() {
		c, err := scanChakra(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// querySaveDotParent only matches when the dot and any new parent both
// belong to the same owner.
func querySaveDotParent(ctx context.Context, db executor, d *domain.Dot) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dots SET wheel_id = $1, chakra_id = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5
		  AND ($1::text IS NULL OR EXISTS (SELECT 1 FROM wheels WHERE id = $1 AND owner_id = $5))
		  AND ($2::text IS NULL OR EXISTS (SELECT 1 FROM chakras WHERE id = $2 AND owner_id = $5))`,
		nullString(d.WheelID()),
		nullString(d.ChakraID()),
		d.UpdatedAt,
		d.ID,
		d.OwnerID,
	)
	return expectOne(res, err)
}

func querySaveWheelParent(ctx context.Context, db executor, w *domain.Wheel) error {
	res, err := db.ExecContext(ctx, `
		UPDATE wheels SET chakra_id = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
		  AND ($1::text IS NULL OR EXISTS (SELECT 1 FROM chakras WHERE id = $1 AND owner_id = $4))`,
		nullString(w.ChakraID),
		w.UpdatedAt,
		w.ID,
		w.OwnerID,
	)
	return expectOne(res, err)
}

func querySavePosition(ctx context.Context, db executor, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE `+table+` SET pos_x = $1, pos_y = $2, updated_at = $3 WHERE id = $4 AND owner_id = $5`,
		pos.X, pos.Y, at, id, ownerID,
	)
	return expectOne(res, err)
}

func queryOwned(ctx context.Context, db executor, ownerID string, kind domain.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = $1 AND owner_id = $2`, id, ownerID).Scan(&one)
	return notFound(err)
}

func queryCreateDot(ctx context.Context, db executor, d *domain.Dot) error {
	if d.Parent != nil {
		if err := queryOwned(ctx, db, d.OwnerID, d.Parent.Kind, d.Parent.ID); err != nil {
			return err
		}
	}
	x, y := positionArgs(d.Position)
	_, err := db.ExecContext(ctx, `
		INSERT INTO dots (`+dotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.OwnerID, d.Summary, d.Note, d.Mood,
		nullString(d.WheelID()), nullString(d.ChakraID()),
		x, y, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func queryCreateWheel(ctx context.Context, db executor, w *domain.Wheel) error {
	if w.ChakraID != "" {
		if err := queryOwned(ctx, db, w.OwnerID, domain.KindChakra, w.ChakraID); err != nil {
			return err
		}
	}
	x, y := positionArgs(w.Position)
	_, err := db.ExecContext(ctx, `
		INSERT INTO wheels (`+wheelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.OwnerID, w.Heading, w.Description, nullString(w.ChakraID),
		x, y, w.CreatedAt, w.UpdatedAt,
	)
	return err
}

func queryCreateChakra(ctx context.Context, db executor, c *domain.Chakra) error {
	x, y := positionArgs(c.Position)
	_, err := db.ExecContext(ctx, `
		INSERT INTO chakras (`+chakraColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.OwnerID, c.Heading, c.Purpose,
		x, y, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// queryDelete detaches children before removing the row so their
// updated_at moves along with the parent change.
func queryDelete(ctx context.Context, db executor, ownerID string, kind domain.Kind, id string, at time.Time) error {
	if err := queryOwned(ctx, db, ownerID, kind, id); err != nil {
		return err
	}

	switch kind {
	case domain.KindWheel:
		if _, err := db.ExecContext(ctx,
			`UPDATE dots SET wheel_id = NULL, updated_at = $1 WHERE wheel_id = $2 AND owner_id = $3`,
			at, id, ownerID); err != nil {
			return fmt.Errorf("detach dots: %w", err)
		}
	case domain.KindChakra:
		if _, err := db.ExecContext(ctx,
			`UPDATE wheels SET chakra_id = NULL, updated_at = $1 WHERE chakra_id = $2 AND owner_id = $3`,
			at, id, ownerID); err != nil {
			return fmt.Errorf("detach wheels: %w", err)
		}
		if _, err := db.ExecContext(ctx,
			`UPDATE dots SET chakra_id = NULL, updated_at = $1 WHERE chakra_id = $2 AND owner_id = $3`,
			at, id, ownerID); err != nil {
			return fmt.Errorf("detach dots: %w", err)
		}
	}

	table, _ := tableFor(kind)
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return expectOne(res, err)
}
