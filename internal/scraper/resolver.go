// internal/scraper/resolver.go
package scraper

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const opResolve = "resolve"

// Resolve tries the chain in order within scope and returns the first element
// of the first selector that matches. Absence is a failure outcome; an error
// is returned only for malformed input.
func (e *Engine) Resolve(scope SearchScope, chain SelectorChain, opts ResolveOptions) (Outcome[*goquery.Selection], error) {
	if err := chain.Validate(); err != nil {
		return Outcome[*goquery.Selection]{}, utils.WrapError(err, utils.ErrCodeInvalidInput, "resolve")
	}
	if scope.Selection == nil {
		return Outcome[*goquery.Selection]{}, utils.WrapError(ErrNilScope, utils.ErrCodeInvalidInput, "resolve")
	}

	maxAttempts := e.maxAttempts(opts.MaxAttempts)
	variant := opKey(opResolve, maxAttempts, opts.FallbackToDocument, scope.Kind.String())
	if opts.FallbackToDocument && scope.Kind == ScopeContainer && scope.Document != nil {
		variant = opKey(variant, scope.Document.Fingerprint())
	}
	return cachedOutcome(e, opResolve, variant, scope.Selection, chain, func() Outcome[*goquery.Selection] {
		return e.resolveChain(scope, chain, maxAttempts, opts.FallbackToDocument)
	}), nil
}

func (e *Engine) maxAttempts(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.config.MaxSelectorAttempts
}

// resolveChain is the uncached search used by Resolve and the field
// extractors. Attempts never exceed min(len(chain), maxAttempts) plus one
// for the document-wide fallback.
func (e *Engine) resolveChain(scope SearchScope, chain []string, maxAttempts int, fallback bool) Outcome[*goquery.Selection] {
	start := time.Now()
	out := Outcome[*goquery.Selection]{}

	limit := len(chain)
	if maxAttempts > 0 && maxAttempts < limit {
		limit = maxAttempts
	}

	for _, selector := range chain[:limit] {
		out.Attempts++
		found, err := query(scope.Selection, selector)
		if err != nil {
			e.logger.WithField("selector", selector).Debugf("selector evaluation failed: %v", err)
			e.metrics.RecordSelector(selector, false)
			continue
		}
		if found.Length() == 0 {
			e.metrics.RecordSelector(selector, false)
			continue
		}

		e.metrics.RecordSelector(selector, true)
		out.Success = true
		out.Value = found.First()
		out.Count = found.Length()
		out.SelectorUsed = selector
		out.ElapsedTime = time.Since(start)
		return out
	}

	if fallback && scope.Kind == ScopeContainer && scope.Document != nil {
		out.Attempts++
		if sel, selector, count := e.firstMatch(scope.Document.Root(), chain[:limit]); sel != nil {
			out.Success = true
			out.Value = sel
			out.Count = count
			out.SelectorUsed = selector
			out.UsedFallback = true
		}
	}

	if !out.Success {
		e.logger.WithField("scope", describeScope(scope)).Debugf("no selector matched after %d attempts", out.Attempts)
	}
	out.ElapsedTime = time.Since(start)
	return out
}

// firstMatch scans selectors in priority order and returns the first element
// of the first non-empty match. Evaluation errors are skipped.
func (e *Engine) firstMatch(root *goquery.Selection, selectors []string) (*goquery.Selection, string, int) {
	for _, selector := range selectors {
		found, err := query(root, selector)
		if err != nil {
			e.logger.WithField("selector", selector).Debugf("fallback selector evaluation failed: %v", err)
			continue
		}
		if found.Length() > 0 {
			return found.First(), selector, found.Length()
		}
	}
	return nil, "", 0
}

// describeScope is used in log lines
func describeScope(scope SearchScope) string {
	if scope.Selection == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%d nodes)", scope.Kind, scope.Selection.Length())
}
