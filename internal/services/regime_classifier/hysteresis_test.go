package regime_classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marketregime/internal/domain/regime"
)

func labels(pattern string) []regime.Label {
	out := make([]regime.Label, 0, len(pattern))
	for _, c := range pattern {
		switch c {
		case 'U':
			out = append(out, regime.Bull)
		case 'D':
			out = append(out, regime.Bear)
		case 'S':
			out = append(out, regime.Sideways)
		default:
			out = append(out, "")
		}
	}
	return out
}

func TestSmooth(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		minBars int
		want    string
	}{
		{"empty", "", 3, ""},
		{"single", "U", 3, "U"},
		{"constant", "SSSSS", 3, "SSSSS"},
		{"isolated flip rejected", "SSUSSSS", 3, "SSSSSSS"},
		{"confirmed switch", "SSUUUUS", 3, "SSUUUUU"},
		{"switch back confirmed by truncated window", "SSUUUSS", 3, "SSUUUSS"},
		{"switch with a gap", "SSUSUUS", 3, "SSUUUUU"},
		{"first label seeds", "DSSSSS", 3, "DSSSSS"},
		{"tail window too short", "SSSSU", 3, "SSSSS"},
		{"tail window just enough", "SSSUU", 3, "SSSUU"},
		{"missing labels read as sideways", "U?????", 3, "USSSSS"},
		{"min bars one accepts every change", "SUDS", 1, "SUDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, labels(tt.want), Smooth(labels(tt.raw), tt.minBars, 0.6))
		})
	}
}

func TestSmooth_LengthPreserved(t *testing.T) {
	raw := labels("UDUDUDSSSUUUUDDDD")

	assert.Len(t, Smooth(raw, 10, 0.6), len(raw))
}

func TestSmooth_DoesNotMutateInput(t *testing.T) {
	raw := labels("U??D")
	before := append([]regime.Label(nil), raw...)

	Smooth(raw, 2, 0.6)

	assert.Equal(t, before, raw)
}

func TestConfirmationThreshold(t *testing.T) {
	assert.Equal(t, 6, confirmationThreshold(10, 0.6))
	assert.Equal(t, 2, confirmationThreshold(3, 0.6))
	assert.Equal(t, 1, confirmationThreshold(1, 0.6))
}
