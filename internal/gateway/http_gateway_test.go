package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/uncmorfi/reservation-service/config"
	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

func newTestGateway(t *testing.T, handler http.Handler) (Gateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewHTTPGateway(config.GatewayConfig{BaseURL: srv.URL}, logger.InitializeTestZapLogger())
	return gw, srv
}

func TestFetchLoginChallenge(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login/12345" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "x"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"path":"/p1","token":"t1","captchaImage":"data:image/png;base64,xyz"}`))
	}))

	draft, err := gw.FetchLoginChallenge(context.Background(), "12345")
	if err != nil {
		t.Fatalf("FetchLoginChallenge: %v", err)
	}
	if draft.Code != "12345" || draft.Path != "/p1" || draft.Token != "t1" {
		t.Errorf("draft = %+v", draft)
	}
	if draft.CaptchaImage == "" {
		t.Error("captcha image missing from draft")
	}

	found := false
	for _, c := range draft.Cookies {
		if c.Name == "sid" && c.Value == "x" {
			found = true
		}
	}
	if !found {
		t.Errorf("Set-Cookie header not folded into draft cookies: %v", draft.Cookies)
	}
}

func TestAttemptReservationSendsSessionAndParsesResponse(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p1/reserve" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.FormValue("code"); got != "12345" {
			t.Errorf("form code = %q", got)
		}
		if got := r.FormValue("token"); got != "t1" {
			t.Errorf("form token = %q", got)
		}
		if c, err := r.Cookie("sid"); err != nil || c.Value != "x" {
			t.Errorf("session cookie not sent: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"t2","reservationResult":"reserving"}`))
	}))

	res := &models.Reservation{
		Code:    "12345",
		Path:    "/p1",
		Token:   "t1",
		Cookies: []models.Cookie{{Name: "sid", Value: "x"}},
	}

	resp, err := gw.AttemptReservation(context.Background(), res)
	if err != nil {
		t.Fatalf("AttemptReservation: %v", err)
	}
	if resp.Token != "t2" || resp.Result != "reserving" {
		t.Errorf("response = %+v", resp)
	}
}

func TestNonSuccessStatusIsTransportError(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	res := &models.Reservation{Code: "12345", Path: "/p1", Token: "t1"}
	_, err := gw.QueryStatus(context.Background(), res)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsTransport(err) {
		t.Errorf("expected TransportError, got %T: %v", err, err)
	}
}

func TestUndecodableBodyIsProtocolError(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	res := &models.Reservation{Code: "12345", Path: "/p1", Token: "t1"}
	_, err := gw.QueryStatus(context.Background(), res)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsProtocol(err) {
		t.Errorf("expected ProtocolError, got %T: %v", err, err)
	}
}

func TestUnreachableBackendIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // dead address

	gw := NewHTTPGateway(config.GatewayConfig{BaseURL: srv.URL}, logger.InitializeTestZapLogger())

	_, err := gw.FetchLoginChallenge(context.Background(), "12345")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsTransport(err) {
		t.Errorf("expected TransportError, got %T: %v", err, err)
	}
}
