package service

import (
	"testing"

	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/gateway"
	"github.com/uncmorfi/reservation-service/internal/models"
)

func TestAdvanceMergesAndReturnsState(t *testing.T) {
	res := &models.Reservation{Code: "123", Path: "/p0", Token: "t0"}
	resp := &gateway.Response{
		Path:    "/p1",
		Token:   "t1",
		Cookies: []models.Cookie{{Name: "sid", Value: "x"}},
		Result:  "reserving",
	}

	st, err := Advance(res, resp)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st != models.ReserveReserving {
		t.Errorf("state = %q, want RESERVING", st)
	}
	if res.Path != "/p1" || res.Token != "t1" || res.CookieValue("sid") != "x" {
		t.Errorf("response not merged: %+v", res)
	}
}

func TestAdvanceKeepsStickyValues(t *testing.T) {
	res := &models.Reservation{
		Code:    "123",
		Path:    "/p0",
		Token:   "t0",
		Cookies: []models.Cookie{{Name: "sid", Value: "x"}},
	}

	st, err := Advance(res, &gateway.Response{Result: "RESERVING"})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st != models.ReserveReserving {
		t.Errorf("state = %q, want RESERVING", st)
	}
	if res.Path != "/p0" || res.Token != "t0" || res.CookieValue("sid") != "x" {
		t.Errorf("sticky values lost: %+v", res)
	}
}

func TestAdvanceRedoLoginLeavesReservationUntouched(t *testing.T) {
	res := &models.Reservation{Code: "123", Path: "/p0", Token: "t0"}

	st, err := Advance(res, &gateway.Response{Path: "/evil", Token: "evil", Result: "REDOLOGIN"})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st != models.ReserveRedoLogin {
		t.Errorf("state = %q, want REDOLOGIN", st)
	}
	if res.Path != "/p0" || res.Token != "t0" {
		t.Errorf("reservation mutated on REDOLOGIN: %+v", res)
	}
}

func TestAdvanceUnknownTagIsProtocolError(t *testing.T) {
	res := &models.Reservation{Code: "123", Path: "/p0", Token: "t0"}

	_, err := Advance(res, &gateway.Response{Path: "/p1", Result: "WHATEVER"})
	if err == nil {
		t.Fatal("expected protocol error, got none")
	}
	if !apperrors.IsProtocol(err) {
		t.Errorf("expected ProtocolError, got %T: %v", err, err)
	}
	if res.Path != "/p0" {
		t.Errorf("reservation mutated on malformed response: %+v", res)
	}
}
