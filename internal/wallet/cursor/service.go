package cursor

import (
	"context"

	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
)

type service struct {
	store Store
	guard Guard
}

// NewService 创建游标服务
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(store Store, guard Guard) Service {
	return &service{store: store, guard: guard}
}

func (s *service) GetCursor(ctx context.Context, pair chain.Pair) (*Cursor, error) {
	return s.store.Get(ctx, pair)
}

func (s *service) ListCursors(ctx context.Context) ([]*Cursor, error) {
	return s.store.List(ctx)
}

func (s *service) SetStartHeight(ctx context.Context, pair chain.Pair, height int64) error {
	if height < 0 {
		return ErrNegativeHeight
	}

	return s.guard.WhileStopped(pair, func() error {
		if err := s.store.SetStartHeight(ctx, pair, height); err != nil {
			return err
		}

		log.Info().Str("pair", pair.String()).Int64("start_height", height).Msg("Start height updated")

		return nil
	})
}

func (s *service) AdvanceLastProcessed(ctx context.Context, pair chain.Pair, height int64) error {
	cur, err := s.store.Get(ctx, pair)
	if err != nil {
		return err
	}

	// same height is a no-op
	if height == cur.LastProcessedHeight {
		return nil
	}

	return s.store.AdvanceLastProcessed(ctx, pair, height)
}
