package dev

import (
	"context"

	"marketregime/internal/seeds"
)

// SeedTrending creates long histories with a clear trend in both directions
func SeedTrending(ctx context.Context, s *seeds.Seeder) error {
	// Steady uptrend
	if err := s.Insert(ctx, "BTCUSDT", "1h", s.Series().
		WithBase(42000).
		WithLength(720).
		WithSpread(60).
		Rising(15)); err != nil {
		return err
	}

	// Steady downtrend
	if err := s.Insert(ctx, "ETHUSDT", "1h", s.Series().
		WithBase(3200).
		WithLength(720).
		WithSpread(8).
		Falling(1.5)); err != nil {
		return err
	}

	// Daily uptrend for slower timeframes
	return s.Insert(ctx, "BTCUSDT", "1d", s.Series().
		WithBase(30000).
		WithLength(400).
		WithSpread(400).
		Rising(40))
}
