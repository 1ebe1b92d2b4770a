package ident

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_UniqueUnderRapidCalls(t *testing.T) {
	g := New()
	const n = 10000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := g.Next("CUST")
		require.True(t, strings.HasPrefix(id, "CUST-"), id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNext_UniqueWithFrozenClockAndEntropy(t *testing.T) {
	frozen := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	g := New(
		WithClock(func() time.Time { return frozen }),
		WithEntropy(func() [4]byte { return [4]byte{1, 2, 3, 4} }),
	)

	a := g.Next("ITEM")
	b := g.Next("ITEM")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "-01020304"))
}

func TestNext_Concurrent(t *testing.T) {
	g := New()
	const workers, per = 8, 500

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := g.Next("PURCH")
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestNext_Shape(t *testing.T) {
	id := Next("inv")
	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "INV", parts[0])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToUpper(id), id)
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"CUST":   "CUST",
		"cust":   "CUST",
		"old-st": "OLDST",
		"":       DefaultPrefix,
		"--":     DefaultPrefix,
		"ünï":    "N",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePrefix(in), in)
	}
	assert.True(t, HasPrefix(Next("book"), "BOOK"))
}
