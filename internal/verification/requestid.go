package verification

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// DefaultMaxRequestIDAttempts bounds the generate-check-insert loop
const DefaultMaxRequestIDAttempts = 10

var requestIDPattern = regexp.MustCompile(`^OR[A-Z]{2}[0-9]{2}[0-9]{2}[0-9]{2}[0-9]{4}$`)

// ValidRequestID reports whether s has the OR<D><T><YY><HH><MM><RRRR> shape
func ValidRequestID(s string) bool {
	return requestIDPattern.MatchString(s)
}

// RequestIDGenerator builds human-readable request codes. It does not check
// uniqueness; the store's unique index does.
type RequestIDGenerator struct {
	loc    *time.Location
	now    func() time.Time
	suffix func() int
}

func NewRequestIDGenerator(loc *time.Location) *RequestIDGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &RequestIDGenerator{
		loc:    loc,
		now:    time.Now,
		suffix: func() int { return 1000 + rand.IntN(9000) },
	}
}

// Generate returns a candidate id for a record in the given district and
// taluk, stamped with the generator's clock
func (g *RequestIDGenerator) Generate(district, taluk string) string {
	return g.GenerateAt(district, taluk, g.now())
}

// GenerateAt stamps the id with at, normally the record's creation time
func (g *RequestIDGenerator) GenerateAt(district, taluk string, at time.Time) string {
	now := at.In(g.loc)
	return fmt.Sprintf("OR%c%c%02d%02d%02d%04d",
		initial(district), initial(taluk),
		now.Year()%100, now.Hour(), now.Minute(),
		g.suffix())
}

// initial is the uppercased first letter, or X when absent or not A-Z
func initial(s string) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return 'X'
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 'X'
	}
	return c
}
