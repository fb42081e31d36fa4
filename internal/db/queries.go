package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.LeitnerError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const cardColumns = `id, name_raw, name_norm, question, answer, keywords_json, links_json, created_at, updated_at`

// InsertCard stores a new card.
func InsertCard(ctx context.Context, db Querier, c *card.Card) error {
	keywordsJSON, err := toNullJSON(c.Keywords, len(c.Keywords))
	if err != nil {
		return errors.NewInternal(err)
	}
	linksJSON, err := toNullJSON(c.Links, len(c.Links))
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		c.ID, c.Name, c.NameNorm, c.Question, c.Answer,
		keywordsJSON, linksJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetCardByID retrieves a card by its ULID.
func GetCardByID(ctx context.Context, db *sql.DB, id string) (*card.Card, error) {
	row := db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("card", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// GetCardByName retrieves a card by normalized name.
func GetCardByName(ctx context.Context, db *sql.DB, nameNorm string) (*card.Card, error) {
	row := db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE name_norm = ?`, nameNorm)
	c, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("card", nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// CheckCardNameExists checks if a card with the given normalized name exists.
func CheckCardNameExists(ctx context.Context, db Querier, nameNorm string) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE name_norm = ? LIMIT 1`, nameNorm).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListCards returns cards ordered by name with the total number of matches.
// A non-empty keyword restricts the result to cards carrying that keyword
// (case-insensitive).
func ListCards(ctx context.Context, db *sql.DB, keyword string, limit, offset int) ([]card.Card, int, error) {
	where := ""
	var args []any
	if kw := card.Normalize(keyword); kw != "" {
		where = ` WHERE EXISTS (SELECT 1 FROM json_each(cards.keywords_json) WHERE lower(json_each.value) = ?)`
		args = append(args, kw)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + cardColumns + ` FROM cards` + where + ` ORDER BY name_norm ASC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var cards []card.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return cards, total, nil
}

// StreamCards returns all cards ordered by name for export.
// The caller must close the rows and scan them with ScanCardFromRows.
func StreamCards(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY name_norm ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanCardFromRows scans the current row of StreamCards.
func ScanCardFromRows(rows *sql.Rows) (*card.Card, error) {
	return scanCard(rows)
}

// ResolveCards looks up cards by name, matching on normalized names.
// The result follows the order of names; unknown names are omitted.
func ResolveCards(ctx context.Context, db *sql.DB, names []string) ([]card.Card, error) {
	if len(names) == 0 {
		return nil, nil
	}

	norms := make([]any, 0, len(names))
	for _, n := range names {
		norms = append(norms, card.Normalize(n))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(norms)), ",")

	rows, err := db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE name_norm IN (`+placeholders+`)`, norms...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	byNorm := make(map[string]card.Card, len(names))
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		byNorm[c.NameNorm] = *c
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	result := make([]card.Card, 0, len(byNorm))
	seen := make(map[string]bool, len(byNorm))
	for _, n := range norms {
		norm := n.(string)
		if c, ok := byNorm[norm]; ok && !seen[norm] {
			seen[norm] = true
			result = append(result, c)
		}
	}
	return result, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCard scans a single row into a Card struct.
func scanCard(row scanner) (*card.Card, error) {
	var (
		c            card.Card
		keywordsJSON sql.NullString
		linksJSON    sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.NameNorm, &c.Question, &c.Answer,
		&keywordsJSON, &linksJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &c.Keywords); err != nil {
			return nil, err
		}
	}
	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &c.Links); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// toNullJSON encodes v as JSON, or NULL when n is zero.
func toNullJSON(v any, n int) (sql.NullString, error) {
	if n == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
