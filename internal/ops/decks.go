package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/db"
	"github.com/hpungsan/leitner/internal/errors"
)

// CreateDeckInput contains parameters for the CreateDeck operation.
type CreateDeckInput struct {
	Name  string   // required, unique after normalization
	Cards []string // card names; every card must exist
}

// CreateDeck stores a new deck. Card names are replaced by the stored
// spelling of each card; duplicates are dropped.
func CreateDeck(ctx context.Context, database *sql.DB, input CreateDeckInput) (*card.Deck, error) {
	name := strings.TrimSpace(input.Name)
	nameNorm := card.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}

	requested := card.Unique(input.Cards)
	resolved, err := db.ResolveCards(ctx, database, requested)
	if err != nil {
		return nil, err
	}
	if len(resolved) != len(requested) {
		found := make(map[string]bool, len(resolved))
		for _, c := range resolved {
			found[c.NameNorm] = true
		}
		for _, n := range requested {
			if !found[card.Normalize(n)] {
				return nil, errors.NewNotFound("card", n)
			}
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()

	d := &card.Deck{
		ID:        id,
		Name:      name,
		NameNorm:  nameNorm,
		Cards:     card.Names(resolved),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertDeck(ctx, database, d); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists("deck", name)
		}
		return nil, err
	}
	return d, nil
}

// GetDeck retrieves a deck by name.
func GetDeck(ctx context.Context, database *sql.DB, name string) (*card.Deck, error) {
	nameNorm := card.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("deck name is required")
	}
	return db.GetDeckByName(ctx, database, nameNorm)
}

// DeckSummary is a deck without its card list.
type DeckSummary struct {
	Name      string `json:"name"`
	CardCount int    `json:"card_count"`
	CreatedAt int64  `json:"created_at"`
}

// ListDecksOutput contains the result of the ListDecks operation.
type ListDecksOutput struct {
	Items []DeckSummary `json:"items"`
}

// ListDecks lists all decks by name.
func ListDecks(ctx context.Context, database *sql.DB) (*ListDecksOutput, error) {
	decks, err := db.ListDecks(ctx, database)
	if err != nil {
		return nil, err
	}
	items := make([]DeckSummary, 0, len(decks))
	for _, d := range decks {
		items = append(items, DeckSummary{Name: d.Name, CardCount: len(d.Cards), CreatedAt: d.CreatedAt})
	}
	return &ListDecksOutput{Items: items}, nil
}
