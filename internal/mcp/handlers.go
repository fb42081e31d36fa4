package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/errors"
	"github.com/hpungsan/leitner/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db      *sql.DB
	cfg     *config.Config
	learner *ops.Learner
	log     *slog.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards records.
func NewHandlers(db *sql.DB, cfg *config.Config, learner *ops.Learner, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{db: db, cfg: cfg, learner: learner, log: logger.With("component", "mcp")}
}

// Request types for each tool

// CardAddRequest represents the arguments for card_add.
type CardAddRequest struct {
	Name     string   `json:"name"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// CardGetRequest represents the arguments for card_get.
type CardGetRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// CardListRequest represents the arguments for card_list.
type CardListRequest struct {
	Keyword string `json:"keyword,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// BackupExportRequest represents the arguments for backup_export.
type BackupExportRequest struct {
	Path string `json:"path,omitempty"`
}

// BackupImportRequest represents the arguments for backup_import.
type BackupImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// DeckCreateRequest represents the arguments for deck_create.
type DeckCreateRequest struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards,omitempty"`
}

// DeckGetRequest represents the arguments for deck_get.
type DeckGetRequest struct {
	Name string `json:"name"`
}

// LearnStartRequest represents the arguments for learn_start.
type LearnStartRequest struct {
	Deck      string `json:"deck"`
	Algorithm string `json:"algorithm,omitempty"`
	Box       string `json:"box,omitempty"`
	Sort      string `json:"sort,omitempty"`
}

// SessionRequest addresses a learn session.
type SessionRequest struct {
	Session   string `json:"session,omitempty"`
	Deck      string `json:"deck,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

func (r SessionRequest) ref() ops.SessionRef {
	return ops.SessionRef{Session: r.Session, Deck: r.Deck, Algorithm: r.Algorithm}
}

// LearnShowRequest represents the arguments for learn_show.
type LearnShowRequest struct {
	SessionRequest
	IncludeAnswer bool `json:"include_answer,omitempty"`
}

// LearnAnswerRequest represents the arguments for learn_answer.
type LearnAnswerRequest struct {
	SessionRequest
	Correct *bool `json:"correct"`
}

// HandleCardAdd handles the card_add tool call.
func (h *Handlers) HandleCardAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CardAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	links := make([]card.Link, 0, len(input.Links))
	for _, raw := range input.Links {
		l, err := card.ParseLink(raw)
		if err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}
		links = append(links, l)
	}

	result, err := ops.AddCard(ctx, h.db, ops.AddCardInput{
		Name:     input.Name,
		Question: input.Question,
		Answer:   input.Answer,
		Keywords: input.Keywords,
		Links:    links,
	})
	if err != nil {
		return h.fail("card_add", err), nil
	}
	return successResult(result)
}

// HandleCardGet handles the card_get tool call.
func (h *Handlers) HandleCardGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CardGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetCard(ctx, h.db, ops.GetCardInput{ID: input.ID, Name: input.Name})
	if err != nil {
		return h.fail("card_get", err), nil
	}
	return successResult(result)
}

// HandleCardList handles the card_list tool call.
func (h *Handlers) HandleCardList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CardListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListCards(ctx, h.db, ops.ListCardsInput{
		Keyword: input.Keyword,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return h.fail("card_list", err), nil
	}
	return successResult(result)
}

// HandleDeckCreate handles the deck_create tool call.
func (h *Handlers) HandleDeckCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeckCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateDeck(ctx, h.db, ops.CreateDeckInput{Name: input.Name, Cards: input.Cards})
	if err != nil {
		return h.fail("deck_create", err), nil
	}
	return successResult(result)
}

// HandleDeckGet handles the deck_get tool call.
func (h *Handlers) HandleDeckGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeckGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetDeck(ctx, h.db, input.Name)
	if err != nil {
		return h.fail("deck_get", err), nil
	}
	return successResult(result)
}

// HandleDeckList handles the deck_list tool call.
func (h *Handlers) HandleDeckList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListDecks(ctx, h.db)
	if err != nil {
		return h.fail("deck_list", err), nil
	}
	return successResult(result)
}

// HandleLearnStart handles the learn_start tool call.
func (h *Handlers) HandleLearnStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LearnStartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Start(ctx, ops.StartInput{
		Deck:      input.Deck,
		Algorithm: input.Algorithm,
		Box:       input.Box,
		Sort:      input.Sort,
	})
	if err != nil {
		return h.fail("learn_start", err), nil
	}
	return successResult(result)
}

// HandleLearnShow handles the learn_show tool call.
func (h *Handlers) HandleLearnShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LearnShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Show(ctx, ops.ShowInput{
		SessionRef:    input.ref(),
		IncludeAnswer: input.IncludeAnswer,
	})
	if err != nil {
		return h.fail("learn_show", err), nil
	}
	return successResult(result)
}

// HandleLearnAnswer handles the learn_answer tool call.
func (h *Handlers) HandleLearnAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LearnAnswerRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Correct == nil {
		return errorResult(errors.NewInvalidRequest("correct is required")), nil
	}

	result, err := h.learner.Answer(ctx, ops.AnswerInput{
		SessionRef: input.ref(),
		Correct:    *input.Correct,
	})
	if err != nil {
		return h.fail("learn_answer", err), nil
	}
	return successResult(result)
}

// HandleLearnNext handles the learn_next tool call.
func (h *Handlers) HandleLearnNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Next(ctx, input.ref())
	if err != nil {
		return h.fail("learn_next", err), nil
	}
	return successResult(result)
}

// HandleLearnBack handles the learn_back tool call.
func (h *Handlers) HandleLearnBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Back(ctx, input.ref())
	if err != nil {
		return h.fail("learn_back", err), nil
	}
	return successResult(result)
}

// HandleLearnStop handles the learn_stop tool call.
func (h *Handlers) HandleLearnStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Stop(ctx, input.ref())
	if err != nil {
		return h.fail("learn_stop", err), nil
	}
	return successResult(result)
}

// HandleLearnStatus handles the learn_status tool call.
func (h *Handlers) HandleLearnStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.learner.Status(ctx, input.ref())
	if err != nil {
		return h.fail("learn_status", err), nil
	}
	return successResult(result)
}

// HandleLearnList handles the learn_list tool call.
func (h *Handlers) HandleLearnList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.learner.ListSessions(ctx)
	if err != nil {
		return h.fail("learn_list", err), nil
	}
	return successResult(result)
}

// HandleBackupExport handles the backup_export tool call.
func (h *Handlers) HandleBackupExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return h.fail("backup_export", err), nil
	}
	h.log.Info("exported", "path", result.Path, "cards", result.Cards, "decks", result.Decks)
	return successResult(result)
}

// HandleBackupImport handles the backup_import tool call.
func (h *Handlers) HandleBackupImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.db, h.cfg, ops.ImportInput{Path: input.Path, Mode: ops.ImportMode(input.Mode)})
	if err != nil {
		return h.fail("backup_import", err), nil
	}
	return successResult(result)
}

// fail logs server-side faults and converts err to a tool error result.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	var lErr *errors.LeitnerError
	if !stderrors.As(err, &lErr) || lErr.Status >= 500 {
		h.log.Error("tool call failed", "tool", tool, "error", err)
	}
	return errorResult(err)
}

// errorResult converts an error to an MCP error result with a JSON body.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var lErr *errors.LeitnerError
	if stderrors.As(err, &lErr) {
		// Keep any wrapper context in front of the message
		msg := lErr.Message
		if full := err.Error(); full != lErr.Error() {
			msg = strings.TrimSuffix(full, lErr.Error()) + lErr.Message
		}
		errorObj := map[string]any{
			"code":    lErr.Code,
			"message": msg,
			"status":  lErr.Status,
		}
		// Internal details may carry file paths or SQL errors
		if lErr.Code != errors.ErrInternal && lErr.Details != nil {
			errorObj["details"] = lErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result with JSON content.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
