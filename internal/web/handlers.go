package web

import (
	"database/sql"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/errors"
	"github.com/hpungsan/leitner/internal/learn"
	"github.com/hpungsan/leitner/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	learner  *ops.Learner
	renderer *Renderer
}

// HandleIndex handles GET /learn. Sessions and decks ready to learn.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.learner.ListSessions(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	decks, err := ops.ListDecks(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"sessions": sessions.Items,
			"decks":    decks.Items,
		})
		return
	}

	h.renderer.renderPage(w, r, "index", IndexPageData{
		PageData: h.renderer.page("Learn", "learn"),
		Sessions: sessions.Items,
		Decks:    h.deckStarts(decks.Items, sessions.Items),
	})
}

// deckStarts pairs each deck with the box labels of its Leitner session.
// Decks without one get the labels a new session would be created with.
func (h *Handlers) deckStarts(decks []ops.DeckSummary, sessions []ops.StatusOutput) []DeckStart {
	existing := make(map[string][]string, len(sessions))
	for _, s := range sessions {
		labels := make([]string, 0, len(s.Boxes))
		for _, b := range s.Boxes {
			labels = append(labels, b.Label)
		}
		existing[s.Session] = labels
	}

	n := h.cfg.LeitnerBoxes
	if n < 1 {
		n = learn.DefaultBoxes
	}
	fresh := make([]string, 0, n)
	for i := range n {
		fresh = append(fresh, learn.BoxLabel(i))
	}

	out := make([]DeckStart, 0, len(decks))
	for _, d := range decks {
		boxes, ok := existing[ops.SessionName(d.Name, ops.AlgorithmLeitner)]
		if !ok {
			boxes = fresh
		}
		out = append(out, DeckStart{DeckSummary: d, Boxes: boxes})
	}
	return out
}

// HandleStart handles POST /learn. Start or resume a pass over a deck.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := h.learner.Start(r.Context(), ops.StartInput{
		Deck:      r.FormValue("deck"),
		Algorithm: r.FormValue("algorithm"),
		Box:       r.FormValue("box"),
		Sort:      r.FormValue("sort"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.respond(w, r, result, sessionPath(result.Session))
}

// HandleStudy handles GET /learn/{session}. The current card and the box overview.
func (h *Handlers) HandleStudy(w http.ResponseWriter, r *http.Request) {
	ref := ops.SessionRef{Session: r.PathValue("session")}
	showAnswer := parseBoolParam(r, "answer")

	status, err := h.learner.Status(r.Context(), ref)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := StudyPageData{
		PageData:   h.renderer.page(status.Session, "learn"),
		Status:     status,
		ShowAnswer: showAnswer,
	}
	if status.Started {
		current, err := h.learner.Show(r.Context(), ops.ShowInput{SessionRef: ref, IncludeAnswer: showAnswer})
		if err != nil && !errors.Is(err, errors.ErrNotStarted) {
			h.renderer.renderError(w, r, err)
			return
		}
		if current != nil {
			data.Current = current
			data.Question = renderMarkdown(current.Card.Question)
			if showAnswer {
				data.Answer = renderMarkdown(current.Card.Answer)
			}
		}
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"status":  status,
			"current": data.Current,
		})
		return
	}

	h.renderer.renderPage(w, r, "study", data)
}

// HandleAnswer handles POST /learn/{session}/answer. Grade the current card.
func (h *Handlers) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	correct, err := strconv.ParseBool(r.FormValue("correct"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(`correct must be "true" or "false"`))
		return
	}

	session := r.PathValue("session")
	result, err := h.learner.Answer(r.Context(), ops.AnswerInput{
		SessionRef: ops.SessionRef{Session: session},
		Correct:    correct,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.respond(w, r, result, sessionPath(session))
}

// HandleNext handles POST /learn/{session}/next.
func (h *Handlers) HandleNext(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	result, err := h.learner.Next(r.Context(), ops.SessionRef{Session: session})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, sessionPath(session))
}

// HandleBack handles POST /learn/{session}/back.
func (h *Handlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	result, err := h.learner.Back(r.Context(), ops.SessionRef{Session: session})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, sessionPath(session))
}

// HandleStop handles POST /learn/{session}/stop. Suspend and return to the overview.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	result, err := h.learner.Stop(r.Context(), ops.SessionRef{Session: r.PathValue("session")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, result, "/learn")
}

// HandleCards handles GET /cards. List cards, optionally by keyword.
func (h *Handlers) HandleCards(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	result, err := ops.ListCards(r.Context(), h.db, ops.ListCardsInput{
		Keyword: keyword,
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "cards", CardsPageData{
		PageData:   h.renderer.page("Cards", "cards"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Keyword:    keyword,
	})
}

// HandleCard handles GET /cards/{id}. A single card with rendered Markdown.
func (h *Handlers) HandleCard(w http.ResponseWriter, r *http.Request) {
	c, err := ops.GetCard(r.Context(), h.db, ops.GetCardInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, c)
		return
	}

	h.renderer.renderPage(w, r, "card", CardPageData{
		PageData: h.renderer.page(c.Name, "cards"),
		Card:     c,
		Question: renderMarkdown(c.Question),
		Answer:   renderMarkdown(c.Answer),
	})
}

// respond writes result as JSON for API clients and redirects browsers to location.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, result any, location string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// sessionPath returns the study page path of a session.
func sessionPath(session string) string {
	return "/learn/" + pathEscape(session)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
