package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"finchat/internal/core"
)

const (
	requestBodyLimit = 64 * 1024
	dateLayout       = "2006-01-02"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

// writeDomainError maps pipeline errors onto the API's status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var unres *core.UnresolvableError
	switch {
	case errors.As(err, &unres):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "unresolvable",
			Reason: unres.Reason,
			Detail: unres.Detail,
		})
	case errors.Is(err, core.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown_user", "no such user")
	case errors.Is(err, core.ErrSourceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "source_unavailable", "transaction source unavailable")
	case errors.Is(err, core.ErrGatewayFailure):
		writeError(w, http.StatusBadGateway, "gateway_failure", "language model unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, core.ErrEmptyQuestion),
		errors.Is(err, core.ErrEmptyUserID),
		errors.Is(err, core.ErrEmptyEventID),
		errors.Is(err, core.ErrEmptyAction),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, requestBodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

type chatbotRequest struct {
	UserID      string `json:"user_id"`
	Question    string `json:"question"`
	CurrentTime string `json:"current_time,omitempty"`
}

type chatbotResponse struct {
	Response string      `json:"response"`
	Meta     chatbotMeta `json:"meta"`
}

type chatbotMeta struct {
	// Aggregation carries the full grounded result, or null for general
	// questions that touched no ledger data.
	Aggregation *aggregationMeta `json:"aggregation"`
	Reconciled  bool             `json:"reconciled"`
	Source      string           `json:"source"`
}

type aggregationMeta struct {
	Kind       string         `json:"kind"`
	Value      string         `json:"value"`
	Count      int            `json:"count"`
	Unit       string         `json:"unit"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Width      string         `json:"width,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	NoData     bool           `json:"no_data"`
	ByCategory []categoryMeta `json:"by_category,omitempty"`
	Buckets    []bucketMeta   `json:"buckets,omitempty"`
}

type categoryMeta struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type bucketMeta struct {
	Start string `json:"start"`
	Total string `json:"total"`
}

func newAggregationMeta(q *core.StructuredQuery, r *core.AggregationResult) *aggregationMeta {
	if q == nil || r == nil {
		return nil
	}
	m := &aggregationMeta{
		Kind:       string(r.Kind),
		Value:      r.Value.String(),
		Count:      r.Count,
		Unit:       r.Unit,
		Start:      r.Range.Start.Format(dateLayout),
		End:        r.Range.End.Format(dateLayout),
		Width:      string(r.Width),
		Categories: q.Categories,
		NoData:     r.NoData,
	}
	for _, c := range r.ByCategory {
		m.ByCategory = append(m.ByCategory, categoryMeta{Name: c.Name, Amount: c.Amount.String()})
	}
	for _, b := range r.Buckets {
		m.Buckets = append(m.Buckets, bucketMeta{Start: b.Start.Format(dateLayout), Total: b.Total.String()})
	}
	return m
}

func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var req chatbotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	now := time.Now().UTC()
	if req.CurrentTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.CurrentTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "current_time must be RFC 3339")
			return
		}
		now = parsed
	}

	answer, err := s.chat.Answer(r.Context(), req.UserID, req.Question, now)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatbotResponse{
		Response: answer.Answer,
		Meta: chatbotMeta{
			Aggregation: newAggregationMeta(answer.Query, answer.Result),
			Reconciled:  answer.Reconciled,
			Source:      answer.Source,
		},
	})
}

type gamificationResponse struct {
	UserID       string   `json:"user_id"`
	TotalXP      int64    `json:"total_xp"`
	Level        int      `json:"level"`
	Achievements []string `json:"achievements"`
}

func (s *Server) handleGamificationState(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	st, err := s.game.State(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	achievements := st.Achievements
	if achievements == nil {
		achievements = []string{}
	}
	writeJSON(w, http.StatusOK, gamificationResponse{
		UserID:       st.UserID,
		TotalXP:      st.TotalXP,
		Level:        st.Level,
		Achievements: achievements,
	})
}

type xpEventRequest struct {
	EventID    string `json:"event_id,omitempty"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	XPDelta    int64  `json:"xp_delta"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

func (s *Server) handleXPEvent(w http.ResponseWriter, r *http.Request) {
	var req xpEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev := core.XPEvent{
		EventID: req.EventID,
		UserID:  req.UserID,
		Action:  req.Action,
		XPDelta: req.XPDelta,
	}
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "occurred_at must be RFC 3339")
			return
		}
		ev.OccurredAt = parsed
	}
	if ev.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if ev.Action == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "action is required")
		return
	}

	if err := s.game.Award(r.Context(), ev); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type createUserRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ledger.Register(r.Context(), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": req.UserID})
}

type createTransactionRequest struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
		return
	}

	t := core.Transaction{
		ID:          req.ID,
		UserID:      req.UserID,
		Amount:      core.Money{Cents: cents},
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "timestamp must be RFC 3339")
			return
		}
		t.Timestamp = parsed
	}

	recorded, err := s.ledger.Record(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": recorded.ID})
}

type exchangeResponse struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	Reconciled bool   `json:"reconciled"`
	CreatedAt  string `json:"created_at"`
}

func (s *Server) handleExchangeHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "exchange history not available")
		return
	}
	userID := r.PathValue("user_id")

	exchanges, err := s.history.RecentExchanges(r.Context(), userID, 20)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]exchangeResponse, 0, len(exchanges))
	for _, ex := range exchanges {
		out = append(out, exchangeResponse{
			ID:         ex.ID,
			Question:   ex.Question,
			Answer:     ex.Answer,
			Source:     ex.Source,
			Reconciled: ex.Reconciled,
			CreatedAt:  ex.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "finchat",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rateLimited, suspicious := s.metrics.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"uptime":                time.Since(s.started).Round(time.Second).String(),
		"requests_rate_limited": rateLimited,
		"requests_suspicious":   suspicious,
	})
}

// handleReady reports readiness. A missing LLM key does not fail readiness:
// the pipeline still serves templated fallback answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadyCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.cfg.ReadyCheck(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"detail": err.Error(),
			})
			return
		}
	}

	mode := "full"
	if !s.cfg.LLMConfigured {
		mode = "fallback_only"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"mode":   mode,
	})
}
