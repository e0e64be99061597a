// internal/scraper/extractor.go
package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const (
	opExtractTitle = "extractTitle"
	opExtractURL   = "extractUrl"
	opExtractImage = "extractImageUrl"
)

// ExtractTitle finds the title inside the container and renders it as a
// canonical patch label. When no selector yields a recognizable title the
// container's full text is tried as one extra attempt.
func (e *Engine) ExtractTitle(scope SearchScope, chain SelectorChain) (Outcome[string], error) {
	if err := e.checkInput(scope, chain, true); err != nil {
		return Outcome[string]{}, err
	}

	return cachedOutcome(e, opExtractTitle, opExtractTitle, scope.Selection, chain, func() Outcome[string] {
		start := time.Now()
		out := Outcome[string]{}

		found := e.resolveChain(scope, chain, e.config.MaxSelectorAttempts, false)
		out.Attempts = found.Attempts
		if found.Success {
			raw := utils.NormalizeWhitespace(found.Value.Text())
			if label, ok := e.titles.Normalize(raw); ok {
				out.Success = true
				out.Value = label
				out.SelectorUsed = found.SelectorUsed
				out.Count = found.Count
				out.ElapsedTime = time.Since(start)
				return out
			}
			e.logger.WithField("text", utils.TruncateString(raw, 80)).Debug("title text not recognized, trying container text")
		}

		out.Attempts++
		text := utils.NormalizeWhitespace(scope.Selection.Text())
		if label, ok := e.titles.Normalize(text); ok {
			out.Success = true
			out.Value = label
			out.UsedFallback = true
		} else {
			out.Error = "no recognizable patch title in container"
		}
		out.ElapsedTime = time.Since(start)
		return out
	}), nil
}

// ExtractURL finds the patch link for a container. The container itself wins
// when it carries an href; then the chain is searched; finally, with fallback
// enabled, the first document link mentioning a URL keyword is used.
func (e *Engine) ExtractURL(scope SearchScope, chain SelectorChain, fallback bool) (Outcome[string], error) {
	if err := e.checkInput(scope, chain, false); err != nil {
		return Outcome[string]{}, err
	}

	variant := opKey(opExtractURL, fallback, e.documentContext(scope, fallback))
	return cachedOutcome(e, opExtractURL, variant, scope.Selection, chain, func() Outcome[string] {
		start := time.Now()
		out := Outcome[string]{}
		base := e.baseFor(scope)

		if href := attrOr(scope.Selection.First(), "href"); href != "" {
			out.Success = true
			out.Value = NormalizeURL(href, base)
			out.SelectorUsed = "self"
			out.ElapsedTime = time.Since(start)
			return out
		}

		if len(chain) > 0 {
			found := e.resolveChain(scope, chain, e.config.MaxSelectorAttempts, false)
			out.Attempts = found.Attempts
			if found.Success {
				if href := linkOf(found.Value); href != "" {
					out.Success = true
					out.Value = NormalizeURL(href, base)
					out.SelectorUsed = found.SelectorUsed
					out.Count = found.Count
					out.ElapsedTime = time.Since(start)
					return out
				}
			}
		}

		if fallback && scope.Document != nil {
			out.Attempts++
			scope.Document.Root().Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				href := attrOr(a, "href")
				if href == "" || !utils.ContainsAnyFold(href, e.config.URLKeywords) {
					return true
				}
				out.Success = true
				out.Value = NormalizeURL(href, base)
				out.SelectorUsed = "a[href]"
				out.UsedFallback = true
				return false
			})
		}

		if !out.Success {
			out.Error = "no link found"
		}
		out.ElapsedTime = time.Since(start)
		return out
	}), nil
}

// ExtractImageURL finds an image reference for a container. The attribute
// accessor reads the primary image attribute before the lazy-load ones, and
// every candidate must pass the image validator. The document-wide fallback
// additionally requires an image keyword in the reference.
func (e *Engine) ExtractImageURL(scope SearchScope, chain SelectorChain, fallback bool) (Outcome[string], error) {
	if err := e.checkInput(scope, chain, false); err != nil {
		return Outcome[string]{}, err
	}

	variant := opKey(opExtractImage, fallback, e.documentContext(scope, fallback))
	return cachedOutcome(e, opExtractImage, variant, scope.Selection, chain, func() Outcome[string] {
		start := time.Now()
		out := Outcome[string]{}
		base := e.baseFor(scope)

		if len(chain) > 0 {
			found := e.resolveChain(scope, chain, e.config.MaxSelectorAttempts, false)
			out.Attempts = found.Attempts
			if found.Success {
				ref := e.imageRef(found.Value)
				if ref != "" && e.images.IsValid(ref) {
					out.Success = true
					out.Value = NormalizeURL(ref, base)
					out.SelectorUsed = found.SelectorUsed
					out.Count = found.Count
					out.ElapsedTime = time.Since(start)
					return out
				}
				if ref != "" {
					out.Error = "image reference rejected: " + utils.TruncateString(ref, 80)
				}
			}
		}

		if fallback && scope.Document != nil {
			out.Attempts++
			for _, selector := range e.config.FallbackImageChain {
				candidates, err := query(scope.Document.Root(), selector)
				if err != nil {
					e.logger.WithField("selector", selector).Debugf("image fallback selector failed: %v", err)
					continue
				}
				candidates.EachWithBreak(func(_ int, img *goquery.Selection) bool {
					ref := e.imageRef(img)
					if ref == "" || !e.images.IsValid(ref) || !utils.ContainsAnyFold(ref, e.config.ImageKeywords) {
						return true
					}
					out.Success = true
					out.Value = NormalizeURL(ref, base)
					out.SelectorUsed = selector
					out.UsedFallback = true
					out.Error = ""
					return false
				})
				if out.Success {
					break
				}
			}
		}

		if !out.Success && out.Error == "" {
			out.Error = "no image found"
		}
		out.ElapsedTime = time.Since(start)
		return out
	}), nil
}

// NormalizeURL resolves raw against the engine base URL
func (e *Engine) NormalizeURL(raw string) string {
	return NormalizeURL(raw, e.baseURL)
}

// NormalizeURL makes a reference absolute. Absolute URLs are returned as is,
// protocol-relative ones get https, and anything else is resolved against
// base. Without a base a relative reference is returned unchanged.
func NormalizeURL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return raw
	}
	if base == nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// imageRef is the two-phase attribute accessor. It reads the element first
// and then its first img descendant.
func (e *Engine) imageRef(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	candidates := []*goquery.Selection{sel.First()}
	if goquery.NodeName(sel.First()) != "img" {
		if img := sel.First().Find("img").First(); img.Length() > 0 {
			candidates = append(candidates, img)
		}
	}

	for _, c := range candidates {
		if v := attrOr(c, e.config.ImageAttribute); v != "" && !isPlaceholder(v) {
			return v
		}
		for _, attr := range e.config.LazyImageAttributes {
			if v := attrOr(c, attr); v != "" {
				return v
			}
		}
	}
	return ""
}

// isPlaceholder reports src values that lazy loaders swap out later
func isPlaceholder(v string) bool {
	return strings.HasPrefix(strings.ToLower(v), "data:")
}

// linkOf returns the href of sel or of its first linked descendant
func linkOf(sel *goquery.Selection) string {
	if href := attrOr(sel, "href"); href != "" {
		return href
	}
	return attrOr(sel.Find("a[href]").First(), "href")
}

// baseFor prefers the engine base URL over the document's own
func (e *Engine) baseFor(scope SearchScope) *url.URL {
	if e.baseURL != nil {
		return e.baseURL
	}
	if scope.Document != nil {
		return scope.Document.BaseURL()
	}
	return nil
}

// checkInput rejects malformed calls. Extractors with a self or fallback
// path accept an empty chain but never a blank selector.
func (e *Engine) checkInput(scope SearchScope, chain SelectorChain, chainRequired bool) error {
	if scope.Selection == nil {
		return utils.WrapError(ErrNilScope, utils.ErrCodeInvalidInput, "extract")
	}
	if len(chain) == 0 && !chainRequired {
		return nil
	}
	if err := chain.Validate(); err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidInput, "extract")
	}
	return nil
}
