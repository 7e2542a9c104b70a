package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/uncmorfi/reservation-service/config"
	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

type httpGateway struct {
	baseURL string
	cli     *http.Client
	l       logger.Logger
}

func NewHTTPGateway(cfg config.GatewayConfig, l logger.Logger) Gateway {
	return &httpGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		l:       l,
	}
}

func (g *httpGateway) FetchLoginChallenge(ctx context.Context, card string) (*LoginDraft, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/login/"+url.PathEscape(card), nil)
	if err != nil {
		return nil, apperrors.NewTransportError("fetch login challenge", err)
	}

	resp, err := g.cli.Do(req)
	if err != nil {
		g.l.Errorf(ctx, "httpGateway.FetchLoginChallenge: %v", err)
		return nil, apperrors.NewTransportError("fetch login challenge", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewTransportError("fetch login challenge",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var draft LoginDraft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		g.l.Errorf(ctx, "httpGateway.FetchLoginChallenge: %v", err)
		return nil, apperrors.NewProtocolError("fetch login challenge", err)
	}

	draft.Code = card
	mergeHeaderCookies(&draft.Cookies, resp.Cookies())

	return &draft, nil
}

func (g *httpGateway) SubmitLogin(ctx context.Context, draft *LoginDraft) (*Response, error) {
	form := url.Values{}
	form.Set("code", draft.Code)
	form.Set("token", draft.Token)
	form.Set("captcha", draft.CaptchaText)

	return g.exchange(ctx, "submit login", draft.Path, form, draft.Cookies)
}

func (g *httpGateway) QueryStatus(ctx context.Context, res *models.Reservation) (*Response, error) {
	form := url.Values{}
	form.Set("code", res.Code)
	form.Set("token", res.Token)

	return g.exchange(ctx, "query status", res.Path+"/status", form, res.Cookies)
}

func (g *httpGateway) AttemptReservation(ctx context.Context, res *models.Reservation) (*Response, error) {
	form := url.Values{}
	form.Set("code", res.Code)
	form.Set("token", res.Token)

	return g.exchange(ctx, "attempt reservation", res.Path+"/reserve", form, res.Cookies)
}

// exchange POSTs a form to a backend path with the session cookies
// attached and decodes the reservation response.
func (g *httpGateway) exchange(ctx context.Context, op, path string, form url.Values, cookies []models.Cookie) (*Response, error) {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewTransportError(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := g.cli.Do(req)
	if err != nil {
		g.l.Errorf(ctx, "httpGateway.%s: %v", op, err)
		return nil, apperrors.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewTransportError(op,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		g.l.Errorf(ctx, "httpGateway.%s: %v", op, err)
		return nil, apperrors.NewProtocolError(op, err)
	}

	mergeHeaderCookies(&out.Cookies, resp.Cookies())

	return &out, nil
}

// mergeHeaderCookies folds Set-Cookie headers into the cookie set without
// clobbering cookies the body already named.
func mergeHeaderCookies(dst *[]models.Cookie, hdr []*http.Cookie) {
	for _, hc := range hdr {
		found := false
		for i, c := range *dst {
			if c.Name == hc.Name {
				(*dst)[i].Value = hc.Value
				found = true
				break
			}
		}
		if !found {
			*dst = append(*dst, models.Cookie{Name: hc.Name, Value: hc.Value})
		}
	}
}
