package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/internal/service"
	"github.com/uncmorfi/reservation-service/internal/status"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

type Handler struct {
	svc       service.ReservationService
	hub       *status.Hub
	l         logger.Logger
	validator *validator.Validate
}

func NewHandler(svc service.ReservationService, hub *status.Hub, l logger.Logger) *Handler {
	return &Handler{
		svc:       svc,
		hub:       hub,
		l:         l,
		validator: validator.New(),
	}
}

type loginRequest struct {
	Captcha string `json:"captcha" validate:"required"`
}

type statusResponse struct {
	Card  string               `json:"card"`
	State models.ReserveStatus `json:"state"`
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status/stream", h.StreamStatus)
		r.Route("/reservation/{card}", func(r chi.Router) {
			r.Get("/", h.IsCached)
			r.Get("/challenge", h.LoginChallenge)
			r.Post("/login", h.Login)
			r.Post("/consult", h.Consult)
			r.Post("/reserve", h.ReserveOnce)
			r.Post("/loop", h.ReserveLoop)
			r.Post("/stop", h.Stop)
			r.Delete("/", h.Logout)
		})
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "reservation-service",
	})
}

func (h *Handler) IsCached(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")
	st := h.svc.IsCached(r.Context(), card)
	h.respondJSON(w, http.StatusOK, statusResponse{Card: card, State: st})
}

func (h *Handler) LoginChallenge(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	draft, err := h.svc.LoginChallenge(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	h.respondJSON(w, http.StatusOK, draft)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "captcha answer is required")
		return
	}

	st, err := h.svc.Login(r.Context(), card, req.Captcha)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse{Card: card, State: st})
}

func (h *Handler) Consult(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	st, err := h.svc.Consult(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse{Card: card, State: st})
}

func (h *Handler) ReserveOnce(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	st, err := h.svc.ReserveOnce(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse{Card: card, State: st})
}

func (h *Handler) ReserveLoop(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	st, err := h.svc.ReserveLoop(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	code := http.StatusAccepted
	if st == models.ReserveRedoLogin {
		code = http.StatusOK
	}

	h.respondJSON(w, code, statusResponse{Card: card, State: st})
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")
	h.svc.Stop(r.Context(), card)
	h.respondJSON(w, http.StatusOK, map[string]string{"card": card, "message": "loop stopped"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	card := chi.URLParam(r, "card")

	st, err := h.svc.Logout(r.Context(), card)
	if err != nil {
		h.respondServiceError(w, card, err)
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse{Card: card, State: st})
}

// StreamStatus pushes status events to the client as server-sent events
// until the client disconnects.
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, card string, err error) {
	switch {
	case apperrors.IsTransport(err):
		h.respondError(w, http.StatusBadGateway, "comedor backend unreachable")
	case apperrors.IsProtocol(err):
		h.respondError(w, http.StatusBadGateway, "comedor backend answered garbage")
	default:
		h.l.Errorf(context.Background(), "handler: card=%s: %v", card, err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.l.Errorf(context.Background(), "handler.respondJSON: %v", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg string) {
	h.respondJSON(w, code, map[string]string{"error": msg})
}
