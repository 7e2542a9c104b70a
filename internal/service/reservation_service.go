package service

import (
	"context"
	"sync"
	"time"

	"github.com/uncmorfi/reservation-service/config"
	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/gateway"
	"github.com/uncmorfi/reservation-service/internal/models"
	repo "github.com/uncmorfi/reservation-service/internal/repository/redis"
	"github.com/uncmorfi/reservation-service/internal/status"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

// ReservationService drives the reservation session lifecycle for a card:
// login, status consult, single attempts and the cancellable retry loop.
// Every operation ends in a published status; errors are additionally
// returned so the delivery layer can answer the caller, but nothing is
// retried here except by the loop's own cadence.
type ReservationService interface {
	IsCached(ctx context.Context, card string) models.ReserveStatus
	LoginChallenge(ctx context.Context, card string) (*gateway.LoginDraft, error)
	Login(ctx context.Context, card, captcha string) (models.ReserveStatus, error)
	Consult(ctx context.Context, card string) (models.ReserveStatus, error)
	ReserveOnce(ctx context.Context, card string) (models.ReserveStatus, error)
	ReserveLoop(ctx context.Context, card string) (models.ReserveStatus, error)
	Stop(ctx context.Context, card string)
	Logout(ctx context.Context, card string) (models.ReserveStatus, error)
}

type reservationService struct {
	repo       repo.SessionRepository
	gw         gateway.Gateway
	pub        status.Publisher
	l          logger.Logger
	retryDelay time.Duration

	// Single outstanding-loop slot: starting a loop for any card cancels
	// whichever loop was running before, same card or not.
	mu         sync.Mutex
	loopCancel context.CancelFunc
	loopGen    uint64
}

func NewReservationService(
	sessionRepo repo.SessionRepository,
	gw gateway.Gateway,
	pub status.Publisher,
	cfg config.ReservationConfig,
	l logger.Logger,
) ReservationService {
	return &reservationService{
		repo:       sessionRepo,
		gw:         gw,
		pub:        pub,
		l:          l,
		retryDelay: cfg.RetryDelay,
	}
}

func (s *reservationService) IsCached(ctx context.Context, card string) models.ReserveStatus {
	res, err := s.repo.Get(ctx, card)
	if err != nil {
		s.l.Errorf(ctx, "reservationService.IsCached: %v", err)
		s.pub.Code(ctx, card, models.CodeInternalError)
		return models.ReserveNoCached
	}

	st := models.ReserveNoCached
	if res != nil {
		st = models.ReserveCached
	}

	s.pub.State(ctx, card, st)
	return st
}

func (s *reservationService) LoginChallenge(ctx context.Context, card string) (*gateway.LoginDraft, error) {
	draft, err := s.gw.FetchLoginChallenge(ctx, card)
	if err != nil {
		s.publishFailure(ctx, card, "LoginChallenge", err)
		return nil, err
	}
	return draft, nil
}

func (s *reservationService) Login(ctx context.Context, card, captcha string) (models.ReserveStatus, error) {
	draft, err := s.gw.FetchLoginChallenge(ctx, card)
	if err != nil {
		return s.publishFailure(ctx, card, "Login", err)
	}
	draft.CaptchaText = captcha

	resp, err := s.gw.SubmitLogin(ctx, draft)
	if err != nil {
		return s.publishFailure(ctx, card, "Login", err)
	}

	res := &models.Reservation{Code: card}
	res.Merge(draft.Path, draft.Token, draft.Cookies)
	res.Merge(resp.Path, resp.Token, resp.Cookies)

	if err := s.repo.Put(ctx, res); err != nil {
		return s.publishFailure(ctx, card, "Login", err)
	}

	s.l.Infof(ctx, "login succeeded: card=%s", card)
	s.pub.State(ctx, card, models.ReserveCached)

	return models.ReserveCached, nil
}

func (s *reservationService) Consult(ctx context.Context, card string) (models.ReserveStatus, error) {
	res, err := s.repo.Get(ctx, card)
	if err != nil {
		return s.publishFailure(ctx, card, "Consult", err)
	}
	if res == nil {
		s.pub.State(ctx, card, models.ReserveRedoLogin)
		return models.ReserveRedoLogin, nil
	}

	s.pub.State(ctx, card, models.ReserveConsulting)

	resp, err := s.gw.QueryStatus(ctx, res)
	if err != nil {
		return s.publishFailure(ctx, card, "Consult", err)
	}

	return s.applyResponse(ctx, res, resp, "Consult")
}

func (s *reservationService) ReserveOnce(ctx context.Context, card string) (models.ReserveStatus, error) {
	res, err := s.repo.Get(ctx, card)
	if err != nil {
		return s.publishFailure(ctx, card, "ReserveOnce", err)
	}
	if res == nil {
		s.pub.State(ctx, card, models.ReserveRedoLogin)
		return models.ReserveRedoLogin, nil
	}

	s.pub.State(ctx, card, models.ReserveReserving)

	resp, err := s.gw.AttemptReservation(ctx, res)
	if err != nil {
		return s.publishFailure(ctx, card, "ReserveOnce", err)
	}

	return s.applyResponse(ctx, res, resp, "ReserveOnce")
}

// ReserveLoop starts the retry loop for the card. Any loop already owned
// by this service is cancelled first, whatever card it was working for.
// With no stored session the loop never starts and REDOLOGIN is
// published, as with a single attempt.
func (s *reservationService) ReserveLoop(ctx context.Context, card string) (models.ReserveStatus, error) {
	res, err := s.repo.Get(ctx, card)
	if err != nil {
		return s.publishFailure(ctx, card, "ReserveLoop", err)
	}
	if res == nil {
		s.pub.State(ctx, card, models.ReserveRedoLogin)
		return models.ReserveRedoLogin, nil
	}

	s.mu.Lock()
	if s.loopCancel != nil {
		s.loopCancel()
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.loopCancel = cancel
	s.loopGen++
	gen := s.loopGen
	s.mu.Unlock()

	go s.runLoop(loopCtx, gen, res)

	return models.ReserveReserving, nil
}

func (s *reservationService) runLoop(ctx context.Context, gen uint64, res *models.Reservation) {
	defer s.releaseLoop(gen)

	card := res.Code
	s.l.Infof(ctx, "reservation loop started: run=%d card=%s", gen, card)

	attempt := 0
	for {
		attempt++
		s.pub.Attempt(ctx, card, attempt)

		resp, err := s.gw.AttemptReservation(ctx, res)

		// A cancelled loop observably does nothing further: the result
		// of the in-flight call is discarded unpublished, unpersisted.
		if ctx.Err() != nil {
			s.l.Infof(ctx, "reservation loop cancelled: run=%d card=%s attempts=%d", gen, card, attempt)
			return
		}

		if err != nil {
			if apperrors.IsProtocol(err) {
				// A persistently malformed backend would spin forever;
				// surface it and stop.
				s.l.Errorf(ctx, "reservationService.runLoop: %v", err)
				s.pub.Code(ctx, card, models.CodeInternalError)
				s.pub.Attempt(ctx, card, 0)
				return
			}
			s.l.Warnf(ctx, "reservationService.runLoop: attempt %d failed: %v", attempt, err)
			s.pub.Code(ctx, card, models.CodeConnectError)
		} else {
			// Past the cancellation check the attempt is committed:
			// detach so a late cancel cannot tear the persist step.
			st, aerr := s.applyResponse(context.WithoutCancel(ctx), res, resp, "runLoop")
			if aerr != nil && apperrors.IsProtocol(aerr) {
				s.pub.Attempt(ctx, card, 0)
				return
			}
			if st.IsTerminal() {
				s.l.Infof(ctx, "reservation loop finished: run=%d card=%s state=%s attempts=%d", gen, card, st, attempt)
				s.pub.Attempt(ctx, card, 0)
				return
			}
		}

		select {
		case <-ctx.Done():
			s.l.Infof(ctx, "reservation loop cancelled: run=%d card=%s attempts=%d", gen, card, attempt)
			return
		case <-time.After(s.retryDelay):
		}
	}
}

// releaseLoop clears the loop slot, but only when it still belongs to
// this run; a newer loop may have replaced it already.
func (s *reservationService) releaseLoop(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopGen == gen && s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
}

// Stop cancels the active loop, if any, resets the attempt counter and
// restores the idle status. Calling it with no loop running is a no-op
// apart from the reset.
func (s *reservationService) Stop(ctx context.Context, card string) {
	s.mu.Lock()
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
		s.loopGen++
	}
	s.mu.Unlock()

	s.pub.Attempt(ctx, card, 0)
	s.pub.Code(ctx, card, models.CodeBusy)
}

// Logout deletes the stored session and its cookies. It deliberately
// does not cancel a running loop; the loop will hit REDOLOGIN on its own
// once the backend rejects the dead session. Callers wanting a hard stop
// call Stop first.
func (s *reservationService) Logout(ctx context.Context, card string) (models.ReserveStatus, error) {
	if err := s.repo.Delete(ctx, card); err != nil {
		return s.publishFailure(ctx, card, "Logout", err)
	}

	s.pub.State(ctx, card, models.ReserveNoCached)
	return models.ReserveNoCached, nil
}

// applyResponse runs the state machine over a response and carries out
// its persistence effect: delete on REDOLOGIN, upsert otherwise. The
// resulting state is published last.
func (s *reservationService) applyResponse(ctx context.Context, res *models.Reservation, resp *gateway.Response, op string) (models.ReserveStatus, error) {
	st, err := Advance(res, resp)
	if err != nil {
		return s.publishFailure(ctx, res.Code, op, err)
	}

	if st == models.ReserveRedoLogin {
		if derr := s.repo.Delete(ctx, res.Code); derr != nil {
			return s.publishFailure(ctx, res.Code, op, derr)
		}
	} else {
		if perr := s.repo.Put(ctx, res); perr != nil {
			return s.publishFailure(ctx, res.Code, op, perr)
		}
	}

	s.pub.State(ctx, res.Code, st)
	return st, nil
}

// publishFailure converts an error into its published status code:
// CONNECT_ERROR for transport faults, INTERNAL_ERROR for everything else
// (protocol violations, storage faults).
func (s *reservationService) publishFailure(ctx context.Context, card, op string, err error) (models.ReserveStatus, error) {
	s.l.Errorf(ctx, "reservationService.%s: %v", op, err)

	if apperrors.IsTransport(err) {
		s.pub.Code(ctx, card, models.CodeConnectError)
	} else {
		s.pub.Code(ctx, card, models.CodeInternalError)
	}

	return "", err
}
