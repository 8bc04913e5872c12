package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/orchestrator"
	"github.com/kirillm/action-guard/pkg/utils"
)

const maxBodyBytes = 1 << 20

// Guard операции orchestrator, доступные по HTTP
type Guard interface {
	Propose(ctx context.Context, action domain.Action) (*orchestrator.Result, error)
	Pending() []*domain.ApprovalRequest
	Approve(ctx context.Context, requestID, by, feedback string) (*orchestrator.Result, error)
	Reject(ctx context.Context, requestID, reason, by string) (*domain.ApprovalRequest, error)
	Rollback(ctx context.Context, actionID string) error
	Summary() domain.DailySummary
	GetMode() orchestrator.Mode
}

// KillSwitch статус аварийной остановки
type KillSwitch interface {
	IsActive() bool
}

// Server HTTP приемник действий от движков
type Server struct {
	guard      Guard
	killSwitch KillSwitch
	factory    *domain.ActionFactory
	clock      clock.Clock
	logger     *utils.Logger
	token      string
	addr       string
	started    time.Time
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ActionRequest тело POST /actions; id и время назначает сервер
type ActionRequest struct {
	Engine            domain.Engine          `json:"engine"`
	Category          domain.Category        `json:"category"`
	Type              string                 `json:"type"`
	Description       string                 `json:"description"`
	Params            map[string]interface{} `json:"params,omitempty"`
	EstimatedValue    float64                `json:"estimated_value"`
	Reversible        bool                   `json:"reversible"`
	Urgency           domain.Urgency         `json:"urgency,omitempty"`
	LinesChanged      int                    `json:"lines_changed,omitempty"`
	FilesChanged      int                    `json:"files_changed,omitempty"`
	AffectsProduction bool                   `json:"affects_production,omitempty"`
}

type ResolveRequest struct {
	By       string `json:"by"`
	Feedback string `json:"feedback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ProposeResponse итог обработки действия
type ProposeResponse struct {
	ActionID     string                `json:"action_id"`
	DecisionID   string                `json:"decision_id"`
	Outcome      domain.Outcome        `json:"outcome"`
	Rule         string                `json:"rule"`
	Assessment   domain.RiskAssessment `json:"assessment"`
	RequestID    string                `json:"request_id,omitempty"`
	CheckpointID string                `json:"checkpoint_id,omitempty"`
	Executed     bool                  `json:"executed"`
	Execution    interface{}           `json:"execution,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// NewServer создает сервер; пустой token отключает авторизацию
func NewServer(guard Guard, killSwitch KillSwitch, factory *domain.ActionFactory, addr, token string, clk clock.Clock, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.Default()
	}
	clk = clock.OrReal(clk)
	if factory == nil {
		factory = domain.NewActionFactory(nil, clk)
	}
	return &Server{
		guard:      guard,
		killSwitch: killSwitch,
		factory:    factory,
		clock:      clk,
		logger:     logger.Component("api"),
		token:      token,
		addr:       addr,
		started:    clk.Now(),
	}
}

// Handler маршруты сервера
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, "not found", http.StatusNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	router.Get("/health", s.handleHealth)
	router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/status", s.handleStatus)
		r.Post("/actions", s.handlePropose)
		r.Get("/pending", s.handlePending)
		r.Post("/pending/{id}/approve", s.handleApprove)
		r.Post("/pending/{id}/reject", s.handleReject)
		r.Post("/rollback/{actionID}", s.handleRollback)
	})

	return router
}

// Start запускает сервер и останавливает его при отмене ctx
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server on %s", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	want := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			s.sendError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.clock.Now().Unix(),
		"uptime":    s.clock.Now().Sub(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	killSwitch := false
	if s.killSwitch != nil {
		killSwitch = s.killSwitch.IsActive()
	}
	s.sendSuccess(w, map[string]interface{}{
		"mode":        s.guard.GetMode(),
		"kill_switch": killSwitch,
		"pending":     len(s.guard.Pending()),
		"today":       s.guard.Summary(),
		"timestamp":   s.clock.Now().Unix(),
	})
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(w, r, &req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	action, err := s.buildAction(req)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.guard.Propose(r.Context(), action)
	if res == nil {
		s.sendError(w, fmt.Sprintf("Propose failed: %v", err), http.StatusInternalServerError)
		return
	}

	out := ProposeResponse{
		ActionID:   action.ID,
		DecisionID: res.Decision.ID,
		Outcome:    res.Decision.Outcome,
		Rule:       res.Rule,
		Assessment: res.Decision.Assessment,
		Executed:   res.Executed,
	}
	if res.Request != nil {
		out.RequestID = res.Request.ID
	}
	if res.Checkpoint != nil {
		out.CheckpointID = res.Checkpoint.ID
	}
	if res.Execution != nil {
		out.Execution = res.Execution
	}
	if err != nil {
		// решение принято, но очередь или исполнение вернули ошибку
		out.Error = err.Error()
		s.logger.Warn("propose %s: %v", action.Type, err)
	}
	s.sendSuccess(w, out)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	limit := getQueryParamInt(r, "limit", 50)
	pending := s.guard.Pending()
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	items := make([]*domain.ApprovalRequest, 0, len(pending))
	for _, req := range pending {
		items = append(items, req.Snapshot())
	}
	s.sendSuccess(w, map[string]interface{}{
		"count":    len(items),
		"requests": items,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if err := decodeOptional(w, r, &body); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.By) == "" {
		s.sendError(w, "by is required", http.StatusBadRequest)
		return
	}

	res, err := s.guard.Approve(r.Context(), chi.URLParam(r, "id"), body.By, body.Feedback)
	if errors.Is(err, domain.ErrRequestNotFound) {
		s.sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	if res == nil {
		s.sendError(w, fmt.Sprintf("Approve failed: %v", err), http.StatusInternalServerError)
		return
	}

	out := map[string]interface{}{
		"request_id": res.Request.ID,
		"decision":   res.Decision,
		"executed":   res.Executed,
	}
	if err != nil {
		out["error"] = err.Error()
	}
	s.sendSuccess(w, out)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if err := decodeOptional(w, r, &body); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.By) == "" || strings.TrimSpace(body.Reason) == "" {
		s.sendError(w, "by and reason are required", http.StatusBadRequest)
		return
	}

	req, err := s.guard.Reject(r.Context(), chi.URLParam(r, "id"), body.Reason, body.By)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		s.sendError(w, err.Error(), status)
		return
	}
	s.sendSuccess(w, req.Snapshot())
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	actionID := chi.URLParam(r, "actionID")
	if err := s.guard.Rollback(r.Context(), actionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			status = http.StatusNotFound
		}
		s.sendError(w, err.Error(), status)
		return
	}
	s.sendSuccess(w, map[string]interface{}{
		"action_id":   actionID,
		"rolled_back": true,
	})
}

func (s *Server) buildAction(req ActionRequest) (domain.Action, error) {
	b := s.factory.New(req.Engine, req.Category, req.Type).
		Description(req.Description).
		Params(req.Params).
		Value(req.EstimatedValue).
		Reversible(req.Reversible).
		Changes(req.LinesChanged, req.FilesChanged).
		AffectsProduction(req.AffectsProduction)
	if req.Urgency != "" {
		b = b.Urgency(req.Urgency)
	}
	return b.Build()
}

// Helper methods
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(Response{Success: true, Data: data}); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(Response{Success: false, Error: message}); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptional допускает пустое тело
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decode(w, r, v)
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
