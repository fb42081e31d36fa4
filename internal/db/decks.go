package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

const deckColumns = `id, name_raw, name_norm, cards_json, created_at, updated_at`

// InsertDeck stores a new deck.
func InsertDeck(ctx context.Context, db Querier, d *card.Deck) error {
	cards := d.Cards
	if cards == nil {
		cards = []string{}
	}
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO decks (`+deckColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.NameNorm, string(cardsJSON), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetDeckByName retrieves a deck by normalized name.
func GetDeckByName(ctx context.Context, db Querier, nameNorm string) (*card.Deck, error) {
	row := db.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE name_norm = ?`, nameNorm)
	d, err := scanDeck(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("deck", nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// ListDecks returns all decks ordered by name.
func ListDecks(ctx context.Context, db *sql.DB) ([]card.Deck, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+deckColumns+` FROM decks ORDER BY name_norm ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var decks []card.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		decks = append(decks, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return decks, nil
}

func scanDeck(row scanner) (*card.Deck, error) {
	var (
		d         card.Deck
		cardsJSON string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.NameNorm, &cardsJSON, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cardsJSON), &d.Cards); err != nil {
		return nil, err
	}
	if d.Cards == nil {
		d.Cards = []string{}
	}
	return &d, nil
}
