package service

import (
	apperrors "github.com/uncmorfi/reservation-service/internal/errors"
	"github.com/uncmorfi/reservation-service/internal/gateway"
	"github.com/uncmorfi/reservation-service/internal/models"
)

// Advance feeds one gateway response through the session state machine.
// It parses the result tag, and for every state except REDOLOGIN merges
// the response's path/token/cookies into the reservation in place. On
// REDOLOGIN the reservation is left untouched: the caller must delete the
// stored row instead of persisting. A tag outside the known set yields a
// ProtocolError and no mutation at all.
func Advance(res *models.Reservation, resp *gateway.Response) (models.ReserveStatus, error) {
	st, err := models.ParseReserveStatus(resp.Result)
	if err != nil {
		return "", apperrors.NewProtocolError("advance reservation", err)
	}

	if st == models.ReserveRedoLogin {
		return st, nil
	}

	res.Merge(resp.Path, resp.Token, resp.Cookies)

	return st, nil
}
