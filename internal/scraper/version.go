// internal/scraper/version.go
package scraper

import (
	"regexp"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	opExtractVersion = "extractVersion"

	// SyntheticVersionLayout shapes the token used when no version is found
	SyntheticVersionLayout = "2006.01.02"
)

type versionPattern struct {
	name string
	re   *regexp.Regexp
}

// versionPatterns are tried in order; the first capture wins
var versionPatterns = []versionPattern{
	{"major.minor.patch", regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`)},
	{"major.minor", regexp.MustCompile(`\b(\d+\.\d+)\b`)},
	{"v-prefixed", regexp.MustCompile(`(?i)\bv(\d+(?:\.\d+){0,2})`)},
	{"labeled", regexp.MustCompile(`(?i)(?:patch|version|ver\.?|パッチ|패치|版本)\s*(\d+(?:\.\d+)?)`)},
}

// ExtractVersion pulls a version token out of a title. When nothing matches
// it synthesizes a date token from the engine clock and marks the outcome
// Degraded; the outcome is still successful.
func (e *Engine) ExtractVersion(title string) Outcome[string] {
	start := time.Now()
	out := Outcome[string]{}
	folded := norm.NFKC.String(title)

	for _, p := range versionPatterns {
		out.Attempts++
		if m := p.re.FindStringSubmatch(folded); len(m) > 1 {
			out.Success = true
			out.Value = m[1]
			out.SelectorUsed = p.name
			out.ElapsedTime = time.Since(start)
			e.metrics.RecordOperation(opExtractVersion, true, out.ElapsedTime)
			return out
		}
	}

	out.Success = true
	out.Degraded = true
	out.UsedFallback = true
	out.Value = e.clock.Now().Format(SyntheticVersionLayout)
	out.SelectorUsed = "synthetic-date"
	out.ElapsedTime = time.Since(start)
	e.logger.WithField("title", title).Warnf("no version found in title, using synthetic version %s", out.Value)
	e.metrics.RecordOperation(opExtractVersion, true, out.ElapsedTime)
	return out
}
