package dev

import (
	"context"

	"marketregime/internal/seeds"
)

// SeedRanging creates histories without a lasting trend
func SeedRanging(ctx context.Context, s *seeds.Seeder) error {
	// Range-bound market
	if err := s.Insert(ctx, "SOLUSDT", "1h", s.Series().
		WithBase(95).
		WithLength(720).
		WithSpread(0.6).
		Oscillating(6, 96)); err != nil {
		return err
	}

	// Flat market with no volatility
	return s.Insert(ctx, "USDCUSDT", "1h", s.Series().
		WithBase(1).
		WithLength(300).
		WithSpread(0).
		Constant())
}
