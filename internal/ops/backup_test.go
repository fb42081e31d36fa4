package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/errors"
)

// backupConfig allows export and import in a fresh temp dir.
func backupConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return cfg, dir
}

func TestValidatePath(t *testing.T) {
	cfg, dir := backupConfig(t)

	require.NoError(t, ValidatePath(filepath.Join(dir, "bio.jsonl"), PathCheckWrite, cfg))

	tests := []struct {
		name string
		path string
		mode PathCheckMode
		code errors.ErrorCode
	}{
		{"empty", "", PathCheckWrite, errors.ErrInvalidRequest},
		{"traversal", dir + "/../bio.jsonl", PathCheckWrite, errors.ErrInvalidRequest},
		{"wrong extension", filepath.Join(dir, "bio.json"), PathCheckWrite, errors.ErrInvalidRequest},
		{"subdirectory", filepath.Join(dir, "nested", "bio.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"outside allowed dirs", filepath.Join(t.TempDir(), "bio.jsonl"), PathCheckWrite, errors.ErrInvalidRequest},
		{"missing for read", filepath.Join(dir, "missing.jsonl"), PathCheckRead, errors.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, tc.mode, cfg)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	cfg, dir := backupConfig(t)
	target := filepath.Join(dir, "real.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("{}\n"), 0600))
	link := filepath.Join(dir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidatePath(link, PathCheckRead, cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestExport(t *testing.T) {
	database := openTestDB(t)
	seedBioBox(t, database)
	cfg, dir := backupConfig(t)
	path := filepath.Join(dir, "bio.jsonl")

	out, err := Export(context.Background(), database, cfg, ExportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, path, out.Path)
	require.Equal(t, 2, out.Cards)
	require.Equal(t, 1, out.Decks)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []ExportRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ExportRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 4)
	require.True(t, records[0].LeitnerExport)
	require.Equal(t, ExportSchemaVersion, records[0].SchemaVersion)
	require.Equal(t, RecordCard, records[1].Kind)
	require.Equal(t, "cell", records[1].Card.Name)
	require.Equal(t, RecordDeck, records[3].Kind)
	require.Equal(t, []string{"cell", "organism"}, records[3].Deck.Cards)

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestImport_RoundTrip(t *testing.T) {
	src := openTestDB(t)
	seedBioBox(t, src)
	cfg, dir := backupConfig(t)
	path := filepath.Join(dir, "bio.jsonl")
	ctx := context.Background()

	_, err := Export(ctx, src, cfg, ExportInput{Path: path})
	require.NoError(t, err)

	dst := openTestDB(t)
	out, err := Import(ctx, dst, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 2, out.Cards)
	require.Equal(t, 1, out.Decks)
	require.Empty(t, out.Errors)

	c, err := GetCard(ctx, dst, GetCardInput{Name: "Cell"})
	require.NoError(t, err)
	require.Equal(t, "The **cell**.", c.Answer)
	require.Equal(t, []string{"biology"}, c.Keywords)

	deck, err := GetDeck(ctx, dst, "biobox")
	require.NoError(t, err)
	require.Equal(t, []string{"cell", "organism"}, deck.Cards)
}

func writeExport(t *testing.T, path string, records ...ExportRecord) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	require.NoError(t, enc.Encode(ExportRecord{LeitnerExport: true, SchemaVersion: ExportSchemaVersion}))
	for _, r := range records {
		require.NoError(t, enc.Encode(r))
	}
}

func TestImport_ModeError_IsAtomic(t *testing.T) {
	database := openTestDB(t)
	seedBioBox(t, database)
	cfg, dir := backupConfig(t)
	path := filepath.Join(dir, "mixed.jsonl")
	writeExport(t, path,
		ExportRecord{Kind: RecordCard, Card: &card.Card{Name: "tissue", Question: "q", Answer: "a"}},
		ExportRecord{Kind: RecordCard, Card: &card.Card{Name: "CELL", Question: "q", Answer: "a"}},
	)
	ctx := context.Background()

	out, err := Import(ctx, database, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 0, out.Cards)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "NAME_COLLISION", out.Errors[0].Code)
	require.Equal(t, 3, out.Errors[0].Line)

	_, err = GetCard(ctx, database, GetCardInput{Name: "tissue"})
	require.True(t, errors.Is(err, errors.ErrNotFound), "tissue must not be imported: %v", err)
}

func TestImport_ModeSkip(t *testing.T) {
	database := openTestDB(t)
	seedBioBox(t, database)
	cfg, dir := backupConfig(t)
	path := filepath.Join(dir, "mixed.jsonl")
	writeExport(t, path,
		ExportRecord{Kind: RecordCard, Card: &card.Card{Name: "tissue", Question: "q", Answer: "a"}},
		ExportRecord{Kind: RecordCard, Card: &card.Card{Name: "cell", Question: "q", Answer: "a"}},
		ExportRecord{Kind: RecordDeck, Deck: &card.Deck{Name: "Tissues", Cards: []string{"tissue", "cell"}}},
		ExportRecord{Kind: RecordDeck, Deck: &card.Deck{Name: "Ghosts", Cards: []string{"ghost"}}},
		ExportRecord{Kind: "category"},
	)
	ctx := context.Background()

	out, err := Import(ctx, database, cfg, ImportInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Equal(t, 1, out.Cards)
	require.Equal(t, 1, out.Decks)
	require.Equal(t, 3, out.Skipped)

	codes := make([]string, 0, len(out.Errors))
	for _, e := range out.Errors {
		codes = append(codes, e.Code)
	}
	require.ElementsMatch(t, []string{"INVALID_RECORD", "NAME_COLLISION", "MISSING_CARD"}, codes)

	deck, err := GetDeck(ctx, database, "Tissues")
	require.NoError(t, err)
	require.Equal(t, []string{"tissue", "cell"}, deck.Cards)
}

func TestImport_ParseErrors(t *testing.T) {
	database := openTestDB(t)
	cfg, dir := backupConfig(t)
	path := filepath.Join(dir, "broken.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0600))

	out, err := Import(context.Background(), database, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "PARSE_ERROR", out.Errors[0].Code)
	require.Equal(t, 1, out.Errors[0].Line)
}

func TestImport_InvalidMode(t *testing.T) {
	cfg, dir := backupConfig(t)
	_, err := Import(context.Background(), openTestDB(t), cfg, ImportInput{Path: filepath.Join(dir, "x.jsonl"), Mode: "replace"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}
