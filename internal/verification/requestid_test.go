package verification

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedGenerator(now time.Time, suffixes ...int) *RequestIDGenerator {
	g := NewRequestIDGenerator(time.UTC)
	g.now = func() time.Time { return now }
	i := 0
	g.suffix = func() int {
		s := suffixes[i%len(suffixes)]
		i++
		return s
	}
	return g
}

func TestRequestIDGenerator_Format(t *testing.T) {
	g := NewRequestIDGenerator(time.UTC)
	g.now = func() time.Time { return time.Date(2025, 6, 1, 14, 5, 0, 0, time.UTC) }

	for i := 0; i < 50; i++ {
		id := g.Generate("Kolar", "Malur")
		assert.Regexp(t, regexp.MustCompile(`^ORKM251405[0-9]{4}$`), id)
		assert.True(t, ValidRequestID(id))
	}
}

func TestRequestIDGenerator_Initials(t *testing.T) {
	now := time.Date(2025, 1, 2, 9, 7, 0, 0, time.UTC)
	tests := []struct {
		district, taluk string
		want            string
	}{
		{"kolar", "malur", "ORKM2509071234"},
		{"", "Malur", "ORXM2509071234"},
		{"Kolar", "  ", "ORKX2509071234"},
		{"123", "ಮಾಲೂರು", "ORXX2509071234"},
	}
	for _, tt := range tests {
		g := fixedGenerator(now, 1234)
		assert.Equal(t, tt.want, g.Generate(tt.district, tt.taluk))
	}
}

func TestRequestIDGenerator_UsesLocation(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	g := NewRequestIDGenerator(ist)
	g.now = func() time.Time { return time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC) }
	g.suffix = func() int { return 4321 }

	// 20:00 UTC is 01:30 the next day in IST
	assert.Equal(t, "ORKM2601304321", g.Generate("Kolar", "Malur"))
}

func TestRequestIDGenerator_GenerateAtIgnoresClock(t *testing.T) {
	g := fixedGenerator(time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC), 1234)
	at := time.Date(2024, 3, 9, 8, 30, 59, 0, time.UTC)

	assert.Equal(t, "ORKM2408301234", g.GenerateAt("Kolar", "Malur", at))
}
