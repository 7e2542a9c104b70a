package gateway

import (
	"context"

	"github.com/uncmorfi/reservation-service/internal/models"
)

// LoginDraft is the volatile session handed out by the login challenge:
// not persisted until the login round-trip succeeds.
type LoginDraft struct {
	Code         string          `json:"code"`
	Path         string          `json:"path,omitempty"`
	Token        string          `json:"token,omitempty"`
	CaptchaImage string          `json:"captchaImage,omitempty"`
	CaptchaText  string          `json:"-"`
	Cookies      []models.Cookie `json:"cookies,omitempty"`
}

// Response is what the backend answers to login, status and reserve
// calls. Path/token/cookies are optional refreshes; Result is the
// mandatory lifecycle tag.
type Response struct {
	Path    string          `json:"path"`
	Token   string          `json:"token"`
	Cookies []models.Cookie `json:"cookies"`
	Result  string          `json:"reservationResult"`
}

// Gateway performs the four remote operations against the comedor
// backend. Implementations own transport concerns only; retry policy and
// state transitions live with the caller.
type Gateway interface {
	FetchLoginChallenge(ctx context.Context, card string) (*LoginDraft, error)
	SubmitLogin(ctx context.Context, draft *LoginDraft) (*Response, error)
	QueryStatus(ctx context.Context, res *models.Reservation) (*Response, error)
	AttemptReservation(ctx context.Context, res *models.Reservation) (*Response, error)
}
