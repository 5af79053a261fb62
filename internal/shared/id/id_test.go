package id

import (
	"bytes"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		s := gen.Generate().String()
		_, dup := seen[s]
		require.False(t, dup, "duplicate id %s", s)
		seen[s] = struct{}{}
	}
}

func TestGenerateSortable(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.Generate().String()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"client", NewClientID().String(), ClientPrefix + "_"},
		{"batch", NewBatchID().String(), BatchPrefix + "_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix))
			assert.Len(t, strings.TrimPrefix(tt.id, tt.prefix), 26)
		})
	}
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	gen := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 64)), func() time.Time { return at })

	got, err := Timestamp(gen.WithPrefix(ClientPrefix))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	_, err = Timestamp("ws_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := gen.WithPrefix(ClientPrefix)
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}
