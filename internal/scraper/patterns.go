// internal/scraper/patterns.go
package scraper

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const opMatchPatterns = "matchPatterns"

// Confidence weights. The sum exceeds 1 and is capped.
const (
	confidenceBase  = 0.5
	confidenceID    = 0.3
	confidenceClass = 0.2
	confidenceText  = 0.1
)

// MatchPatterns evaluates every pattern over the whole document, highest
// priority first, and scores each accepted element. A pattern with no
// matches reports TotalMatches=0; only an unusable document is an error.
func (e *Engine) MatchPatterns(doc *Document, patterns []PatternSpec) (matches []PatternMatch, err error) {
	if doc == nil || doc.document == nil {
		return nil, utils.WrapError(ErrNilDocument, utils.ErrCodeInvalidInput, "match patterns")
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = utils.NewError(utils.ErrCodeTraversalFailed, fmt.Sprintf("document traversal failed: %v", r)).
				WithSeverity(utils.SeverityError).
				Build()
			e.metrics.RecordOperation(opMatchPatterns, false, time.Since(start))
		}
	}()

	ordered := slices.Clone(patterns)
	slices.SortStableFunc(ordered, func(a, b PatternSpec) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	root := doc.Root()
	matches = make([]PatternMatch, 0, len(ordered))
	for _, p := range ordered {
		matches = append(matches, e.matchPattern(root, p))
	}

	e.metrics.RecordOperation(opMatchPatterns, true, time.Since(start))
	return matches, nil
}

func (e *Engine) matchPattern(root *goquery.Selection, p PatternSpec) PatternMatch {
	start := time.Now()
	pm := PatternMatch{PatternName: p.Name, Matches: []MatchedValue{}}

	for _, selector := range p.Selectors {
		found, err := query(root, selector)
		if err != nil {
			e.logger.WithFields(map[string]interface{}{
				"pattern":  p.Name,
				"selector": selector,
			}).Debugf("pattern selector failed: %v", err)
			e.metrics.RecordSelector(selector, false)
			continue
		}
		e.metrics.RecordSelector(selector, found.Length() > 0)

		found.Each(func(_ int, sel *goquery.Selection) {
			if p.Validator != nil && !p.Validator(sel) {
				return
			}
			var value any
			if p.Transformer != nil {
				value = p.Transformer(sel)
			} else {
				value = strings.TrimSpace(sel.Text())
			}
			pm.Matches = append(pm.Matches, MatchedValue{
				Value:           value,
				ConfidenceScore: ConfidenceScore(sel),
				Position:        ElementPosition(sel),
				Selector:        selector,
			})
		})
	}

	pm.TotalMatches = len(pm.Matches)
	pm.ElapsedTime = time.Since(start)
	return pm
}

// ConfidenceScore rates an element from its structural cues: 0.5 base,
// +0.3 for an id, +0.2 for a class, +0.1 for non-empty text, capped at 1.0
func ConfidenceScore(sel *goquery.Selection) float64 {
	score := confidenceBase
	if _, ok := sel.Attr("id"); ok {
		score += confidenceID
	}
	if _, ok := sel.Attr("class"); ok {
		score += confidenceClass
	}
	if strings.TrimSpace(sel.Text()) != "" {
		score += confidenceText
	}
	return min(score, 1.0)
}

// ElementPosition approximates layout: X counts preceding element siblings
// and Y counts ancestors
func ElementPosition(sel *goquery.Selection) Position {
	return Position{
		X: sel.PrevAll().Length(),
		Y: sel.Parents().Length(),
	}
}
