package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/gateway"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/internal/status"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

type stubService struct {
	cached   models.ReserveStatus
	loginSt  models.ReserveStatus
	loginErr error
	lastCard string
	captcha  string
}

func (s *stubService) IsCached(_ context.Context, card string) models.ReserveStatus {
	s.lastCard = card
	return s.cached
}

func (s *stubService) LoginChallenge(_ context.Context, card string) (*gateway.LoginDraft, error) {
	return &gateway.LoginDraft{Code: card, CaptchaImage: "img"}, nil
}

func (s *stubService) Login(_ context.Context, card, captcha string) (models.ReserveStatus, error) {
	s.lastCard, s.captcha = card, captcha
	return s.loginSt, s.loginErr
}

func (s *stubService) Consult(_ context.Context, card string) (models.ReserveStatus, error) {
	return models.ReserveConsulting, nil
}

func (s *stubService) ReserveOnce(_ context.Context, card string) (models.ReserveStatus, error) {
	return models.ReserveReserving, nil
}

func (s *stubService) ReserveLoop(_ context.Context, card string) (models.ReserveStatus, error) {
	return models.ReserveReserving, nil
}

func (s *stubService) Stop(_ context.Context, card string) {}

func (s *stubService) Logout(_ context.Context, card string) (models.ReserveStatus, error) {
	return models.ReserveNoCached, nil
}

func newTestHandler(svc *stubService) http.Handler {
	h := NewHandler(svc, status.NewHub(), logger.InitializeTestZapLogger())
	return h.Routes()
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var out statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestIsCachedEndpoint(t *testing.T) {
	svc := &stubService{cached: models.ReserveCached}
	h := newTestHandler(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reservation/12345/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decodeStatus(t, rec); out.Card != "12345" || out.State != models.ReserveCached {
		t.Errorf("body = %+v", out)
	}
}

func TestLoginEndpointValidatesCaptcha(t *testing.T) {
	svc := &stubService{loginSt: models.ReserveCached}
	h := newTestHandler(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservation/12345/login",
		strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing captcha accepted: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservation/12345/login",
		strings.NewReader(`{"captcha":"abcd"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.captcha != "abcd" {
		t.Errorf("captcha = %q, want abcd", svc.captcha)
	}
}

func TestLoginEndpointMapsTransportError(t *testing.T) {
	svc := &stubService{
		loginErr: apperrors.NewTransportError("submit login", errors.New("refused")),
	}
	h := newTestHandler(svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservation/12345/login",
		strings.NewReader(`{"captcha":"abcd"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestLoopEndpointAccepted(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservation/12345/loop", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	h := newTestHandler(&stubService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/reservation/12345/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out := decodeStatus(t, rec); out.State != models.ReserveNoCached {
		t.Errorf("state = %q, want NOCACHED", out.State)
	}
}
