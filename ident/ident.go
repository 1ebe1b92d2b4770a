// Package ident generates record identifiers of the form PREFIX-SUFFIX.
//
// The suffix combines the millisecond timestamp, a per-generator sequence and
// random bits, so two calls never collide inside one process even when they
// land in the same millisecond, and collisions across processes are negligible.
package ident

import (
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// DefaultPrefix is used when the caller's prefix has no usable characters.
const DefaultPrefix = "ID"

// Generator is safe for concurrent use. The zero value is not usable; call New.
type Generator struct {
	seq     atomic.Uint64
	now     func() time.Time
	entropy func() [4]byte
}

type Option func(*Generator)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithEntropy overrides the random source.
func WithEntropy(fn func() [4]byte) Option {
	return func(g *Generator) { g.entropy = fn }
}

func New(opts ...Option) *Generator {
	g := &Generator{now: time.Now, entropy: uuidEntropy}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// uuidEntropy takes the leading bytes of a v4 UUID, which are fully random.
func uuidEntropy() [4]byte {
	u := uuid.New()
	var b [4]byte
	copy(b[:], u[:4])
	return b
}

// Next returns a new identifier for prefix, e.g. "CUST-LXK3B2F01-9F2D4C3A".
// It never fails and never blocks.
func (g *Generator) Next(prefix string) string {
	seq := g.seq.Add(1)
	ms := g.now().UnixMilli()
	rnd := g.entropy()

	var b strings.Builder
	b.WriteString(NormalizePrefix(prefix))
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(strconv.FormatInt(ms, 36)))
	b.WriteString(strings.ToUpper(pad36(seq, 2)))
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(hex.EncodeToString(rnd[:])))
	return b.String()
}

// NormalizePrefix upper-cases prefix and keeps only ASCII letters and digits.
func NormalizePrefix(prefix string) string {
	out := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return -1
		}
		return unicode.ToUpper(r)
	}, prefix)
	if out == "" {
		return DefaultPrefix
	}
	return out
}

// HasPrefix reports whether id was generated for prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, NormalizePrefix(prefix)+"-")
}

func pad36(n uint64, width int) string {
	s := strconv.FormatUint(n, 36)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

var defaultGenerator = New()

// Next uses a process-wide generator.
func Next(prefix string) string { return defaultGenerator.Next(prefix) }
