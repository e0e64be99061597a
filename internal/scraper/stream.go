// internal/scraper/stream.go
package scraper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const opStreamChunk = "streamChunk"

// ChunkStream is a forward-only, pull-based sequence of per-chunk outcomes.
// Nothing is read until Next is called. The source is closed exactly once:
// on exhaustion, on a read error, or by Close.
type ChunkStream struct {
	engine      *Engine
	ctx         context.Context
	source      io.Reader
	reader      *bufio.Reader
	chain       SelectorChain
	chunkSize   int
	maxAttempts int

	carry  []byte
	offset int
	index  int
	err    error
	done   bool

	closeOnce sync.Once
	closeErr  error
}

// StreamExtract prepares a chunked extraction over r. Each chunk is parsed as
// a standalone fragment and resolved against chain on its own. When r is an
// io.Closer it is closed on every exit path, including this function failing.
func (e *Engine) StreamExtract(ctx context.Context, r io.Reader, chain SelectorChain, opts StreamOptions) (*ChunkStream, error) {
	if r == nil {
		return nil, utils.NewError(utils.ErrCodeInvalidInput, "stream reader cannot be nil").Build()
	}
	if err := chain.Validate(); err != nil {
		closeSource(r)
		return nil, utils.WrapError(err, utils.ErrCodeInvalidInput, "stream extract")
	}

	decoded := r
	if opts.ContentType != "" {
		var err error
		decoded, err = charset.NewReader(r, opts.ContentType)
		if errors.Is(err, io.EOF) {
			// the decoder sniffs eagerly; an empty body has nothing to decode
			decoded, err = bytes.NewReader(nil), nil
		}
		if err != nil {
			closeSource(r)
			return nil, utils.WrapError(err, utils.ErrCodeStreamRead, "unsupported stream encoding")
		}
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = e.config.StreamChunkSize
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return &ChunkStream{
		engine:      e,
		ctx:         ctx,
		source:      r,
		reader:      bufio.NewReaderSize(decoded, chunkSize),
		chain:       chain,
		chunkSize:   chunkSize,
		maxAttempts: e.maxAttempts(opts.MaxAttempts),
	}, nil
}

// Next reads, parses and resolves the next chunk. It returns false once the
// input is exhausted, after a read error (see Err), or after Close.
func (s *ChunkStream) Next() (ChunkOutcome, bool) {
	if s.done {
		return ChunkOutcome{}, false
	}
	if err := s.ctx.Err(); err != nil {
		s.fail(utils.WrapError(err, utils.ErrCodeContextCanceled, "stream cancelled"))
		return ChunkOutcome{}, false
	}

	data, final, err := s.readChunk()
	if err != nil {
		s.fail(utils.WrapError(err, utils.ErrCodeStreamRead, "failed to read stream"))
		return ChunkOutcome{}, false
	}
	if len(data) == 0 {
		s.Close()
		return ChunkOutcome{}, false
	}

	chunk := s.process(data, final)
	s.offset += len(data)
	s.index++
	if final {
		s.Close()
	}
	return chunk, true
}

// Err returns the error that ended the sequence, if any
func (s *ChunkStream) Err() error {
	return s.err
}

// Offset returns the number of bytes consumed so far
func (s *ChunkStream) Offset() int {
	return s.offset
}

// Close releases the source. It is safe to call more than once.
func (s *ChunkStream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		s.carry = nil
		if c, ok := s.source.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

// All adapts the stream to a range-over-func sequence. A terminating error
// is yielded last with a zero outcome. Breaking out of the loop closes the
// stream.
func (s *ChunkStream) All() iter.Seq2[ChunkOutcome, error] {
	return func(yield func(ChunkOutcome, error) bool) {
		defer s.Close()
		for {
			chunk, ok := s.Next()
			if !ok {
				if err := s.Err(); err != nil {
					yield(ChunkOutcome{}, err)
				}
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func (s *ChunkStream) fail(err error) {
	s.err = err
	s.engine.logger.WithField("offset", s.offset).Errorf("stream terminated: %v", err)
	s.Close()
}

// readChunk fills up to chunkSize bytes, cut back to a UTF-8 rune boundary.
// One byte of lookahead decides whether the chunk is the last one.
func (s *ChunkStream) readChunk() ([]byte, bool, error) {
	buf := make([]byte, s.chunkSize)
	n := copy(buf, s.carry)
	s.carry = nil

	m, err := io.ReadFull(s.reader, buf[n:])
	n += m
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:n], true, nil
	case err != nil:
		return nil, false, err
	}

	cut := runeBoundary(buf[:n])
	if cut < n {
		s.carry = append([]byte(nil), buf[cut:n]...)
		return buf[:cut], false, nil
	}

	if _, err := s.reader.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return buf[:n], true, nil
		}
		return nil, false, err
	}
	return buf[:n], false, nil
}

// runeBoundary returns the length of the longest prefix of b that does not
// end inside a multi-byte rune
func runeBoundary(b []byte) int {
	n := len(b)
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return n
		}
		if i == 0 {
			// a chunk smaller than one rune cannot be split
			return n
		}
		return i
	}
	return n
}

// process parses one chunk as a standalone fragment and resolves the chain
func (s *ChunkStream) process(data []byte, final bool) ChunkOutcome {
	e := s.engine
	chunk := ChunkOutcome{Offset: s.offset, Size: len(data), IsFinal: final}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		chunk.Error = utils.WrapError(err, utils.ErrCodeParsingError, "failed to parse chunk").Error()
		e.metrics.RecordOperation(opStreamChunk, false, 0)
		return chunk
	}
	doc := &Document{document: gq}

	start := time.Now()
	chunk.Outcome = cachedOutcome(e, opStreamChunk, opKey(opStreamChunk, s.maxAttempts), doc.Root(), s.chain, func() Outcome[*goquery.Selection] {
		return e.resolveChain(doc.Whole(), s.chain, s.maxAttempts, false)
	})
	e.logger.WithFields(map[string]interface{}{
		"chunk":  s.index,
		"offset": chunk.Offset,
		"size":   chunk.Size,
	}).Debugf("chunk processed in %s", utils.FormatDuration(time.Since(start)))
	return chunk
}

func closeSource(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
