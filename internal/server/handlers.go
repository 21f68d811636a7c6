package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/engine/sequencer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Runner executes a fill plan. *sequencer.Sequencer implements it.
type Runner interface {
	Run(ctx context.Context, plan *schemas.FillPlan) (*schemas.FillResponse, error)
}

// Handlers serves the fill API.
type Handlers struct {
	log          *zap.Logger
	runner       Runner
	maxBodyBytes int64
}

// NewHandlers creates the API handlers.
func NewHandlers(logger *zap.Logger, runner Runner, maxBodyBytes int64) *Handlers {
	return &Handlers{
		log:          logger.Named("handlers"),
		runner:       runner,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts /healthz and /fill.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)
	r.Post("/fill", h.HandleFill)
}

// HandleHealthCheck reports liveness.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleFill runs one fill plan and returns its structured outcome.
func (h *Handlers) HandleFill(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var plan schemas.FillPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		h.log.Info("Rejected undecodable fill plan.", zap.Error(err))
		h.respond(w, http.StatusBadRequest, &schemas.FillResponse{
			Reason: schemas.ReasonBadPlan,
			Error:  "invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.runner.Run(r.Context(), &plan)
	if err != nil && !isValidation(err) {
		h.log.Error("Fill request failed.", zap.Error(err))
	}
	h.respond(w, statusFor(resp, err), resp)
}

// statusFor maps a fill outcome to its HTTP status. A detected challenge is
// a successful detection, not a failure.
func statusFor(resp *schemas.FillResponse, err error) int {
	if isValidation(err) {
		return http.StatusBadRequest
	}
	if err != nil || resp == nil {
		return http.StatusInternalServerError
	}
	switch resp.Reason {
	case schemas.ReasonException, schemas.ReasonServerError:
		return http.StatusInternalServerError
	case schemas.ReasonBadPlan, schemas.ReasonBadPortal:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

func isValidation(err error) bool {
	var verr *sequencer.ValidationError
	return errors.As(err, &verr)
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp *schemas.FillResponse) {
	if resp == nil {
		resp = &schemas.FillResponse{Reason: schemas.ReasonServerError}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
