package test

import (
	"context"

	"marketregime/internal/seeds"
)

// SeedBars creates one rising series just long enough for the long window
func SeedBars(ctx context.Context, s *seeds.Seeder) error {
	return s.Insert(ctx, "TESTUSDT", "1h", s.Series().WithLength(260))
}
