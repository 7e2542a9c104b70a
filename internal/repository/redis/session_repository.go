package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

// SessionRepository is durable keyed storage for one reservation session
// per card code plus its cookie set. Absence is a normal result: Get
// returns (nil, nil) when nothing is stored for the card.
type SessionRepository interface {
	Get(ctx context.Context, card string) (*models.Reservation, error)
	Put(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, card string) error
}

type redisSessionRepository struct {
	cli *redis.Client
	ttl time.Duration
	l   logger.Logger
}

func NewRedisSessionRepository(cli *redis.Client, ttl time.Duration, l logger.Logger) SessionRepository {
	return &redisSessionRepository{
		cli: cli,
		ttl: ttl,
		l:   l,
	}
}

func (r *redisSessionRepository) Get(ctx context.Context, card string) (*models.Reservation, error) {
	// Both reads go through MULTI/EXEC so a concurrent Put or Delete
	// cannot land between the session row and its cookie set: the pair
	// always comes from one snapshot.
	var (
		rowCmd    *redis.StringCmd
		cookieCmd *redis.MapStringStringCmd
	)
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rowCmd = pipe.Get(ctx, r.sessionKey(card))
		cookieCmd = pipe.HGetAll(ctx, r.cookieKey(card))
		return nil
	})
	if err != nil && err != redis.Nil {
		r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		return nil, err
	}

	data, err := rowCmd.Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		return nil, err
	}

	var res models.Reservation
	if err := json.Unmarshal(data, &res); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		return nil, err
	}

	for name, value := range cookieCmd.Val() {
		res.Cookies = append(res.Cookies, models.Cookie{Name: name, Value: value})
	}

	return &res, nil
}

func (r *redisSessionRepository) Put(ctx context.Context, res *models.Reservation) error {
	if res.Code == "" {
		return fmt.Errorf("reservation card code is required")
	}

	// Cookies live in their own hash, keyed (card, name).
	row := *res
	row.Cookies = nil

	data, err := json.Marshal(&row)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation: %w", err)
	}

	// MULTI/EXEC so a reader never sees the session row without its
	// cookie set, or a half-replaced cookie set.
	_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(res.Code), data, r.ttl)
		pipe.Del(ctx, r.cookieKey(res.Code))
		if len(res.Cookies) > 0 {
			fields := make([]any, 0, len(res.Cookies)*2)
			for _, c := range res.Cookies {
				fields = append(fields, c.Name, c.Value)
			}
			pipe.HSet(ctx, r.cookieKey(res.Code), fields...)
			pipe.Expire(ctx, r.cookieKey(res.Code), r.ttl)
		}
		return nil
	})
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Put: %v", err)
		return err
	}

	r.l.Debugf(ctx, "reservation stored: card=%s cookies=%d", res.Code, len(res.Cookies))

	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, card string) error {
	// Session row and cookie hash go together (cascade).
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(card))
		pipe.Del(ctx, r.cookieKey(card))
		return nil
	})
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Delete: %v", err)
		return err
	}

	r.l.Debugf(ctx, "reservation deleted: card=%s", card)

	return nil
}

func (r *redisSessionRepository) sessionKey(card string) string {
	return fmt.Sprintf("comedor:session:%s", card)
}

func (r *redisSessionRepository) cookieKey(card string) string {
	return fmt.Sprintf("comedor:cookies:%s", card)
}
