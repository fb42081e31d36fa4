package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/db"
	"github.com/hpungsan/leitner/internal/errors"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // abort on the first problem; nothing is imported
	ImportModeSkip  ImportMode = "skip"  // keep existing cards and decks, import the rest
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Cards   int           `json:"cards"`
	Decks   int           `json:"decks"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

// ImportError describes one record that was not imported.
type ImportError struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importLine struct {
	line   int
	record ExportRecord
}

// Import reads a file written by Export. Cards and decks get fresh IDs and are
// matched on normalized name. Every deck card must exist after the cards of
// the file are imported.
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.LeitnerError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	lines, parseErrors := parseExportFile(file)
	out := &ImportOutput{Errors: []ImportError{}}
	if len(parseErrors) > 0 {
		if input.Mode == ImportModeError {
			out.Errors = parseErrors
			return out, nil
		}
		out.Errors = append(out.Errors, parseErrors...)
		out.Skipped += len(parseErrors)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().Unix()
	abort := func(ie ImportError) (*ImportOutput, error) {
		return &ImportOutput{Errors: []ImportError{ie}}, nil
	}

	// Cards first so decks can reference cards from the same file.
	for _, l := range lines {
		if l.record.Kind != RecordCard {
			continue
		}
		ie, err := importCard(ctx, tx, l, now)
		if err != nil {
			return nil, err
		}
		if ie != nil {
			if input.Mode == ImportModeError {
				return abort(*ie)
			}
			out.Errors = append(out.Errors, *ie)
			out.Skipped++
			continue
		}
		out.Cards++
	}

	for _, l := range lines {
		if l.record.Kind != RecordDeck {
			continue
		}
		ie, err := importDeck(ctx, tx, l, now)
		if err != nil {
			return nil, err
		}
		if ie != nil {
			if input.Mode == ImportModeError {
				return abort(*ie)
			}
			out.Errors = append(out.Errors, *ie)
			out.Skipped++
			continue
		}
		out.Decks++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// parseExportFile reads the JSONL records, skipping the header line.
func parseExportFile(r io.Reader) ([]importLine, []ImportError) {
	var (
		lines       []importLine
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec ExportRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.LeitnerExport {
			continue
		}

		switch {
		case rec.Kind == RecordCard && rec.Card != nil:
		case rec.Kind == RecordDeck && rec.Deck != nil:
		default:
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Kind:    rec.Kind,
				Code:    "INVALID_RECORD",
				Message: "record must be a card or a deck",
			})
			continue
		}
		lines = append(lines, importLine{line: lineNum, record: rec})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return lines, parseErrors
}

// importCard inserts one card. A non-nil ImportError means the record was
// rejected; err is reserved for storage failures.
func importCard(ctx context.Context, tx db.Querier, l importLine, now int64) (*ImportError, error) {
	src := l.record.Card
	reject := func(code, msg string) *ImportError {
		return &ImportError{Line: l.line, Kind: RecordCard, Name: src.Name, Code: code, Message: msg}
	}

	name := strings.TrimSpace(src.Name)
	nameNorm := card.Normalize(name)
	if nameNorm == "" || strings.TrimSpace(src.Question) == "" || strings.TrimSpace(src.Answer) == "" {
		return reject("INVALID_RECORD", "card needs a name, a question and an answer"), nil
	}

	exists, err := db.CheckCardNameExists(ctx, tx, nameNorm)
	if err != nil {
		return nil, err
	}
	if exists {
		return reject("NAME_COLLISION", fmt.Sprintf("card %q already exists", name)), nil
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	c := &card.Card{
		ID:        id,
		Name:      name,
		NameNorm:  nameNorm,
		Question:  src.Question,
		Answer:    src.Answer,
		Keywords:  card.Unique(src.Keywords),
		Links:     src.Links,
		CreatedAt: orNow(src.CreatedAt, now),
		UpdatedAt: orNow(src.UpdatedAt, now),
	}
	if err := db.InsertCard(ctx, tx, c); err != nil {
		if err == db.ErrUniqueConstraint {
			return reject("NAME_COLLISION", fmt.Sprintf("card %q already exists", name)), nil
		}
		return nil, err
	}
	return nil, nil
}

// importDeck inserts one deck whose cards must all exist.
func importDeck(ctx context.Context, tx db.Querier, l importLine, now int64) (*ImportError, error) {
	src := l.record.Deck
	reject := func(code, msg string) *ImportError {
		return &ImportError{Line: l.line, Kind: RecordDeck, Name: src.Name, Code: code, Message: msg}
	}

	name := strings.TrimSpace(src.Name)
	nameNorm := card.Normalize(name)
	if nameNorm == "" {
		return reject("INVALID_RECORD", "deck needs a name"), nil
	}

	if _, err := db.GetDeckByName(ctx, tx, nameNorm); err == nil {
		return reject("NAME_COLLISION", fmt.Sprintf("deck %q already exists", name)), nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	cards := card.Unique(src.Cards)
	for _, n := range cards {
		exists, err := db.CheckCardNameExists(ctx, tx, card.Normalize(n))
		if err != nil {
			return nil, err
		}
		if !exists {
			return reject("MISSING_CARD", fmt.Sprintf("deck %q refers to unknown card %q", name, n)), nil
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	d := &card.Deck{
		ID:        id,
		Name:      name,
		NameNorm:  nameNorm,
		Cards:     cards,
		CreatedAt: orNow(src.CreatedAt, now),
		UpdatedAt: orNow(src.UpdatedAt, now),
	}
	if err := db.InsertDeck(ctx, tx, d); err != nil {
		if err == db.ErrUniqueConstraint {
			return reject("NAME_COLLISION", fmt.Sprintf("deck %q already exists", name)), nil
		}
		return nil, err
	}
	return nil, nil
}

func orNow(ts, now int64) int64 {
	if ts == 0 {
		return now
	}
	return ts
}
