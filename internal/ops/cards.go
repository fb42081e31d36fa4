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

// AddCardInput contains parameters for the AddCard operation.
type AddCardInput struct {
	Name     string      // required, unique after normalization
	Question string      // required
	Answer   string      // required
	Keywords []string    // optional
	Links    []card.Link // optional, term -> target card name
}

// AddCardOutput contains the result of the AddCard operation.
type AddCardOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AddCard stores a new card.
func AddCard(ctx context.Context, database *sql.DB, input AddCardInput) (*AddCardOutput, error) {
	name := strings.TrimSpace(input.Name)
	nameNorm := card.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if strings.TrimSpace(input.Question) == "" {
		return nil, errors.NewInvalidRequest("question is required")
	}
	if strings.TrimSpace(input.Answer) == "" {
		return nil, errors.NewInvalidRequest("answer is required")
	}
	for _, l := range input.Links {
		if strings.TrimSpace(l.Term) == "" || strings.TrimSpace(l.Target) == "" {
			return nil, errors.NewInvalidRequest("links need both term and target")
		}
	}

	exists, err := db.CheckCardNameExists(ctx, database, nameNorm)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewNameAlreadyExists("card", name)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()

	c := &card.Card{
		ID:        id,
		Name:      name,
		NameNorm:  nameNorm,
		Question:  input.Question,
		Answer:    input.Answer,
		Keywords:  card.Unique(input.Keywords),
		Links:     input.Links,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.InsertCard(ctx, database, c); err != nil {
		// Lost a race with a concurrent insert of the same name
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists("card", name)
		}
		return nil, err
	}

	return &AddCardOutput{ID: id, Name: name}, nil
}

// GetCardInput contains parameters for the GetCard operation.
type GetCardInput struct {
	ID   string
	Name string
}

// GetCard retrieves a card by ID or name.
func GetCard(ctx context.Context, database *sql.DB, input GetCardInput) (*card.Card, error) {
	addr, err := ValidateAddress(input.ID, input.Name)
	if err != nil {
		return nil, err
	}
	if addr.ByID {
		return db.GetCardByID(ctx, database, addr.ID)
	}
	return db.GetCardByName(ctx, database, addr.Name)
}

// ListCardsInput contains parameters for the ListCards operation.
type ListCardsInput struct {
	Keyword string // optional, case-insensitive
	Limit   int    // default: 20, max: 100
	Offset  int    // default: 0
}

// ListCardsOutput contains the result of the ListCards operation.
type ListCardsOutput struct {
	Items      []card.Card `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// ListCards lists cards by name, optionally filtered by keyword.
func ListCards(ctx context.Context, database *sql.DB, input ListCardsInput) (*ListCardsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	cards, total, err := db.ListCards(ctx, database, input.Keyword, limit, offset)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []card.Card{}
	}

	return &ListCardsOutput{
		Items: cards,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(cards) < total,
			Total:   total,
		},
	}, nil
}
