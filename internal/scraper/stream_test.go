package scraper

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// closeCounter records how often the stream closed its source
type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func collect(t *testing.T, s *ChunkStream) []ChunkOutcome {
	t.Helper()
	var chunks []ChunkOutcome
	for chunk, err := range s.All() {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestStreamExtractChunks(t *testing.T) {
	e := newTestEngine(t, Config{})
	input := "<p>one</p><p>two</p><h2>Patch 14.2</h2><p>three</p>"
	src := &closeCounter{Reader: strings.NewReader(input)}

	s, err := e.StreamExtract(context.Background(), src, SelectorChain{"h2", "p"}, StreamOptions{ChunkSize: 16})
	require.NoError(t, err)
	chunks := collect(t, s)

	require.Len(t, chunks, 4)
	total := 0
	for i, c := range chunks {
		assert.Equal(t, total, c.Offset)
		assert.Equal(t, i == len(chunks)-1, c.IsFinal, "chunk %d", i)
		total += c.Size
	}
	assert.Equal(t, len(input), total)
	assert.Equal(t, len(input), s.Offset())
	assert.Equal(t, 1, src.closed)

	assert.True(t, chunks[0].Success)
	assert.Equal(t, "p", chunks[0].SelectorUsed)
	assert.Equal(t, 2, chunks[0].Attempts)
}

func TestStreamExtractEmptyInputWithCharset(t *testing.T) {
	e := newTestEngine(t, Config{})

	s, err := e.StreamExtract(context.Background(), strings.NewReader(""), SelectorChain{"p"},
		StreamOptions{ContentType: "text/html; charset=utf-8"})
	require.NoError(t, err)
	assert.Empty(t, collect(t, s))
}

func TestStreamExtractExactMultiple(t *testing.T) {
	e := newTestEngine(t, Config{})
	input := strings.Repeat("x", 32)

	s, err := e.StreamExtract(context.Background(), strings.NewReader(input), SelectorChain{"p"}, StreamOptions{ChunkSize: 16})
	require.NoError(t, err)
	chunks := collect(t, s)

	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].IsFinal)
	assert.True(t, chunks[1].IsFinal)
	assert.Equal(t, 16, chunks[1].Size)
}

func TestStreamExtractEmptyInput(t *testing.T) {
	e := newTestEngine(t, Config{})
	src := &closeCounter{Reader: strings.NewReader("")}

	s, err := e.StreamExtract(context.Background(), src, SelectorChain{"p"}, StreamOptions{})
	require.NoError(t, err)

	_, ok := s.Next()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
	assert.Equal(t, 1, src.closed)
}

func TestStreamExtractKeepsRunesWhole(t *testing.T) {
	e := newTestEngine(t, Config{})
	input := "a" + strings.Repeat("é", 20)

	s, err := e.StreamExtract(context.Background(), strings.NewReader(input), SelectorChain{"p"}, StreamOptions{ChunkSize: 16})
	require.NoError(t, err)

	var sizes []int
	for {
		chunk, ok := s.Next()
		if !ok {
			break
		}
		sizes = append(sizes, chunk.Size)
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []int{15, 16, 10}, sizes)
}

func TestRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want int
	}{
		{"ascii", []byte("abc"), 3},
		{"complete two byte rune", []byte("aé"), 3},
		{"split two byte rune", []byte("aé")[:2], 1},
		{"split three byte rune", []byte("aパ")[:3], 1},
		{"lone lead byte", []byte("é")[:1], 1},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runeBoundary(tt.in))
		})
	}
}

func TestStreamExtractCharset(t *testing.T) {
	e := newTestEngine(t, Config{})
	input := "<p>caf\xe9</p>"

	s, err := e.StreamExtract(context.Background(), strings.NewReader(input), SelectorChain{"p"},
		StreamOptions{ContentType: "text/html; charset=windows-1252"})
	require.NoError(t, err)
	chunks := collect(t, s)

	require.Len(t, chunks, 1)
	require.True(t, chunks[0].Success)
	assert.Equal(t, "café", chunks[0].Value.Text())
	assert.True(t, utf8.ValidString(chunks[0].Value.Text()))
}

func TestStreamExtractEarlyBreakClosesOnce(t *testing.T) {
	e := newTestEngine(t, Config{})
	src := &closeCounter{Reader: strings.NewReader(strings.Repeat("<p>x</p>", 10))}

	s, err := e.StreamExtract(context.Background(), src, SelectorChain{"p"}, StreamOptions{ChunkSize: 16})
	require.NoError(t, err)

	seen := 0
	for range s.All() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, src.closed)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, src.closed)
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestStreamExtractReadError(t *testing.T) {
	e := newTestEngine(t, Config{})
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("<p>x</p>"), iotest.ErrReader(boom))

	s, err := e.StreamExtract(context.Background(), r, SelectorChain{"p"}, StreamOptions{ChunkSize: 64})
	require.NoError(t, err)

	var last error
	count := 0
	for _, err := range s.All() {
		count++
		last = err
	}
	assert.Equal(t, 1, count)
	require.Error(t, last)
	assert.ErrorIs(t, last, boom)
	assert.True(t, utils.HasCode(last, utils.ErrCodeStreamRead))
}

func TestStreamExtractCancelled(t *testing.T) {
	e := newTestEngine(t, Config{})
	src := &closeCounter{Reader: strings.NewReader("<p>x</p>")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := e.StreamExtract(ctx, src, SelectorChain{"p"}, StreamOptions{})
	require.NoError(t, err)

	_, ok := s.Next()
	assert.False(t, ok)
	assert.True(t, utils.HasCode(s.Err(), utils.ErrCodeContextCanceled))
	assert.Equal(t, 1, src.closed)
}

func TestStreamExtractRejectsBadInput(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.StreamExtract(context.Background(), nil, SelectorChain{"p"}, StreamOptions{})
	assert.True(t, utils.HasCode(err, utils.ErrCodeInvalidInput))

	src := &closeCounter{Reader: strings.NewReader("<p>x</p>")}
	_, err = e.StreamExtract(context.Background(), src, nil, StreamOptions{})
	assert.ErrorIs(t, err, ErrEmptySelectorChain)
	assert.Equal(t, 1, src.closed)

	src = &closeCounter{Reader: iotest.ErrReader(errors.New("unreachable"))}
	_, err = e.StreamExtract(context.Background(), src, SelectorChain{"p"}, StreamOptions{ContentType: "text/html; charset=utf-8"})
	assert.True(t, utils.HasCode(err, utils.ErrCodeStreamRead))
	assert.Equal(t, 1, src.closed)
}
