package mcp

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"card", "deck", "learn", "backup"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"card_add": {
		def:     cardAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCardAdd },
	},
	"card_get": {
		def:     cardGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCardGet },
	},
	"card_list": {
		def:     cardListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCardList },
	},
	"deck_create": {
		def:     deckCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeckCreate },
	},
	"deck_get": {
		def:     deckGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeckGet },
	},
	"deck_list": {
		def:     deckListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeckList },
	},
	"learn_start": {
		def:     learnStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnStart },
	},
	"learn_show": {
		def:     learnShowToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnShow },
	},
	"learn_answer": {
		def:     learnAnswerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnAnswer },
	},
	"learn_next": {
		def:     learnNextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnNext },
	},
	"learn_back": {
		def:     learnBackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnBack },
	},
	"learn_stop": {
		def:     learnStopToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnStop },
	},
	"learn_status": {
		def:     learnStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnStatus },
	},
	"learn_list": {
		def:     learnListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLearnList },
	},
	"backup_export": {
		def:     backupExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackupExport },
	},
	"backup_import": {
		def:     backupImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackupImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "learn_start" → "learn").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the flashcard tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, logger *slog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"leitner",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, ops.NewLearner(db, cfg, logger), logger)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, logger *slog.Logger, version string) error {
	s := NewServer(db, cfg, logger, version)
	return server.ServeStdio(s)
}
