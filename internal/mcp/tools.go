package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

// Session addressing shared by the learn_* tools.
var sessionRefOptions = []mcp.ToolOption{
	mcp.WithString("session", mcp.Description("Full session name, e.g. \"BioBoxLeitner\". Takes precedence over deck.")),
	mcp.WithString("deck", mcp.Description("Deck name; the session is <deck><Algorithm>.")),
	mcp.WithString("algorithm", mcp.Description("Algorithm used with deck."), mcp.Enum("leitner", "random")),
}

func learnTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := append([]mcp.ToolOption{mcp.WithDescription(description)}, sessionRefOptions...)
	return mcp.NewTool(name, append(all, opts...)...)
}

var cardAddToolDef = mcp.NewTool("card_add",
	mcp.WithDescription("Add a flashcard. Card names are unique, case-insensitively."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Card name, used to refer to the card in decks and sessions.")),
	mcp.WithString("question", mcp.Required(), mcp.Description("Question side (Markdown).")),
	mcp.WithString("answer", mcp.Required(), mcp.Description("Answer side (Markdown).")),
	mcp.WithArray("keywords", mcp.Description("Keywords for filtering."), stringItems),
	mcp.WithArray("links", mcp.Description("Links to other cards as \"term=target\"."), stringItems),
)

var cardGetToolDef = mcp.NewTool("card_get",
	mcp.WithDescription("Fetch a flashcard by id or name."),
	mcp.WithString("id", mcp.Description("Card ULID.")),
	mcp.WithString("name", mcp.Description("Card name.")),
)

var cardListToolDef = mcp.NewTool("card_list",
	mcp.WithDescription("List flashcards by name, optionally filtered by keyword."),
	mcp.WithString("keyword", mcp.Description("Only cards with this keyword.")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100).")),
	mcp.WithNumber("offset", mcp.Description("Items to skip.")),
)

var deckCreateToolDef = mcp.NewTool("deck_create",
	mcp.WithDescription("Create a deck: a named working set of existing cards."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Deck name.")),
	mcp.WithArray("cards", mcp.Description("Card names."), stringItems),
)

var deckGetToolDef = mcp.NewTool("deck_get",
	mcp.WithDescription("Fetch a deck with its card names."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Deck name.")),
)

var deckListToolDef = mcp.NewTool("deck_list",
	mcp.WithDescription("List decks with their card counts."),
)

var learnStartToolDef = mcp.NewTool("learn_start",
	mcp.WithDescription("Start a pass over a deck, or resume the pass left in progress. Returns the first card without its answer."),
	mcp.WithString("deck", mcp.Required(), mcp.Description("Deck name.")),
	mcp.WithString("algorithm", mcp.Description("leitner (default) or random."), mcp.Enum("leitner", "random")),
	mcp.WithString("box", mcp.Description("Review one box, e.g. \"Box 2\". Omit for all boxes.")),
	mcp.WithString("sort", mcp.Description("Order within a single box; a full pass is always in box order."), mcp.Enum("alphabetical", "random")),
)

var learnShowToolDef = learnTool("learn_show",
	"Show the current card of the active pass.",
	mcp.WithBoolean("include_answer", mcp.Description("Reveal the answer.")),
)

var learnAnswerToolDef = learnTool("learn_answer",
	"Grade the current card. Correct moves it up a box and advances; wrong moves it down a box and stays.",
	mcp.WithBoolean("correct", mcp.Required(), mcp.Description("Whether the card was answered correctly.")),
)

var learnNextToolDef = learnTool("learn_next",
	"Move to the next card. Moving past the last card completes the pass.",
)

var learnBackToolDef = learnTool("learn_back",
	"Move to the previous card.",
)

var learnStopToolDef = learnTool("learn_stop",
	"Suspend the session; the next learn_start resumes the pass.",
)

var learnStatusToolDef = learnTool("learn_status",
	"Show every box of a session with its cards, plus pass progress.",
)

var learnListToolDef = mcp.NewTool("learn_list",
	mcp.WithDescription("List learn sessions, most recently used first."),
)

var backupExportToolDef = mcp.NewTool("backup_export",
	mcp.WithDescription("Write every card and deck to a JSONL file. Learn sessions are not exported."),
	mcp.WithString("path", mcp.Description("Target .jsonl file, directly in ~/.leitner/exports or an allowed_paths directory. Default: a timestamped file in ~/.leitner/exports.")),
)

var backupImportToolDef = mcp.NewTool("backup_import",
	mcp.WithDescription("Import cards and decks from a file written by backup_export."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl file.")),
	mcp.WithString("mode", mcp.Description("error (default) aborts on the first collision; skip keeps existing cards and decks."), mcp.Enum("error", "skip")),
)
