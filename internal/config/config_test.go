package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// writeRepoConfig writes root/.leitner/config.json and returns its path.
func writeRepoConfig(t *testing.T, root, content string) string {
	t.Helper()
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LeitnerBoxes != 5 {
		t.Fatalf("LeitnerBoxes = %d, want 5", cfg.LeitnerBoxes)
	}
	if cfg.DefaultSort != "random" {
		t.Fatalf("DefaultSort = %q, want random", cfg.DefaultSort)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"leitner_boxes": 3, "default_sort": "alphabetical"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LeitnerBoxes != 3 {
		t.Fatalf("LeitnerBoxes = %d, want 3", cfg.LeitnerBoxes)
	}
	if cfg.DefaultSort != "alphabetical" {
		t.Fatalf("DefaultSort = %q, want alphabetical", cfg.DefaultSort)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_NonPositiveBoxesFallsBack(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"leitner_boxes": -2}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LeitnerBoxes != 5 {
		t.Errorf("LeitnerBoxes = %d, want 5 (default)", cfg.LeitnerBoxes)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"leitner_boxes": 7, "disabled_tools": ["card_add"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	writeRepoConfig(t, repoRoot, `{"leitner_boxes": 4, "disabled_tools": ["deck_create"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.LeitnerBoxes != 4 {
		t.Errorf("LeitnerBoxes = %d, want 4 (repo override)", cfg.LeitnerBoxes)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.LeitnerBoxes != 5 {
		t.Errorf("LeitnerBoxes = %d, want 5", cfg.LeitnerBoxes)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeRepoConfig(t, tmpDir, `{"disabled_types": ["deck"]}`)

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "deck" {
		t.Errorf("DisabledTypes = %v, want [deck]", cfg.DisabledTypes)
	}
}

func TestFindRepoConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeRepoConfig(t, tmpDir, `{}`)

	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}

	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{LeitnerBoxes: 5, DBMaxOpenConns: 5, LogLevel: "warn"}
	overlay := &Config{LeitnerBoxes: 3, LogLevel: " debug "}

	result := Merge(base, overlay)

	if result.LeitnerBoxes != 3 {
		t.Errorf("LeitnerBoxes = %d, want 3 (overlay)", result.LeitnerBoxes)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", result.LogLevel)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"card_add", "learn_back"}}
	overlay := &Config{DisabledTools: []string{"learn_back", " deck_create "}}

	result := Merge(base, overlay)

	want := []string{"card_add", "learn_back", "deck_create"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestMerge_AllowedPaths(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/srv/decks"}}
	overlay := &Config{AllowedPaths: []string{"/srv/decks", "/tmp/backup"}}

	result := Merge(base, overlay)
	if len(result.AllowedPaths) != 2 || result.AllowedPaths[1] != "/tmp/backup" {
		t.Errorf("AllowedPaths = %v, want [/srv/decks /tmp/backup]", result.AllowedPaths)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"verbose", slog.LevelWarn},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
