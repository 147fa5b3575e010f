// Package ticketid issues the human-readable references printed on
// complaint receipts. References sort roughly by creation time because the
// leading component is a base-36 encoded nanosecond timestamp; the random
// suffix keeps two references minted at the same instant from colliding.
// Hard uniqueness is enforced by the database constraint, with the caller
// regenerating on conflict.
package ticketid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genmitra/public-complaint-ai-system/internal/domain"
)

const (
	defaultPrefix = "CMP"
	// 12 hex characters give 48 bits of suffix entropy, enough that two
	// references sharing a timestamp practically never collide.
	suffixLen = 12
)

// Generator mints ticket references.
type Generator struct {
	prefix string
	now    func() time.Time
	suffix func() string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithPrefix overrides the reference prefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			g.prefix = strings.ToUpper(trimmed)
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithSuffixSource injects the random suffix source.
func WithSuffixSource(suffix func() string) Option {
	return func(g *Generator) { g.suffix = suffix }
}

// NewGenerator constructs a Generator with production defaults.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		prefix: defaultPrefix,
		now:    time.Now,
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate mints a fresh ticket reference.
func (g *Generator) Generate() string {
	ts := strconv.FormatInt(g.now().UnixNano(), 36)
	return g.prefix + "-" + strings.ToUpper(ts) + "-" + g.suffix()
}

// Assign sets the complaint's ticket id exactly once. Calling Assign on a
// complaint that already has one is a no-op returning the existing id.
func (g *Generator) Assign(complaint *domain.Complaint) string {
	if complaint.TicketID != "" {
		return complaint.TicketID
	}
	complaint.TicketID = g.Generate()
	return complaint.TicketID
}

func randomSuffix() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:suffixLen]
}
