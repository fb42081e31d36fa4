package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/db"
	"github.com/hpungsan/leitner/internal/errors"
)

// ExportSchemaVersion is written to the header line of every export.
const ExportSchemaVersion = "1.0"

// Record kinds in an export file.
const (
	RecordCard = "card"
	RecordDeck = "deck"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: ~/.leitner/exports/leitner-<timestamp>.jsonl
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Cards      int    `json:"cards"`
	Decks      int    `json:"decks"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportRecord is one line of a JSONL export file. The first line is a header
// with LeitnerExport set; every other line carries a card or a deck.
type ExportRecord struct {
	LeitnerExport bool   `json:"_leitner_export,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	Kind string     `json:"kind,omitempty"`
	Card *card.Card `json:"card,omitempty"`
	Deck *card.Deck `json:"deck,omitempty"`
}

// Export writes every card, then every deck, to a JSONL file. Learn sessions
// are not exported. The file is written to a temp file and renamed into place
// so an existing export survives a failed run.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, fmt.Sprintf("leitner-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	out := &ExportOutput{Path: exportPath, ExportedAt: now.Unix()}

	if err := enc.Encode(ExportRecord{LeitnerExport: true, SchemaVersion: ExportSchemaVersion, ExportedAt: out.ExportedAt}); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.StreamCards(ctx, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		c, err := db.ScanCardFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Encode(ExportRecord{Kind: RecordCard, Card: c}); err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Cards++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	decks, err := db.ListDecks(ctx, database)
	if err != nil {
		return nil, err
	}
	for i := range decks {
		if err := enc.Encode(ExportRecord{Kind: RecordDeck, Deck: &decks[i]}); err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Decks++
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before the rename; Windows requires it.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return out, nil
}
