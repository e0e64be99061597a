// internal/scraper/title.go
package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// titlePattern recognizes one phrasing of a patch announcement. The first
// capture group is the patch number.
type titlePattern struct {
	lang string
	re   *regexp.Regexp
}

// defaultTitlePatterns are tried in order. Language-specific phrasings come
// before the generic "update/version N.N" forms so a localized title keeps
// its most specific match.
var defaultTitlePatterns = []titlePattern{
	{"ja", regexp.MustCompile(`パッチ\s*(?:ノート)?\s*(\d+(?:\.\d+)+)`)},
	{"ja", regexp.MustCompile(`(\d+(?:\.\d+)+)\s*パッチ`)},
	{"ko", regexp.MustCompile(`(\d+(?:\.\d+)+)\s*패치`)},
	{"ko", regexp.MustCompile(`패치\s*(?:노트)?\s*(\d+(?:\.\d+)+)`)},
	{"zh", regexp.MustCompile(`(\d+(?:\.\d+)+)\s*(?:版本|版|更新)`)},
	{"zh", regexp.MustCompile(`(?:版本|更新)\s*(\d+(?:\.\d+)+)`)},
	{"en", regexp.MustCompile(`(?i)\bpatch\s*(?:notes?)?\s*v?(\d+(?:\.\d+)+)`)},
	{"es", regexp.MustCompile(`(?i)notas\s+de\s+la\s+versi[oó]n\s+(\d+(?:\.\d+)+)`)},
	{"pt", regexp.MustCompile(`(?i)notas\s+da\s+atualiza[cç][aã]o\s+(\d+(?:\.\d+)+)`)},
	{"fr", regexp.MustCompile(`(?i)notes\s+de\s+(?:patch|mise\s+à\s+jour)\s+(\d+(?:\.\d+)+)`)},
	{"de", regexp.MustCompile(`(?i)patch-?notes\s+(?:zu\s+)?(\d+(?:\.\d+)+)`)},
	{"it", regexp.MustCompile(`(?i)note\s+(?:della\s+)?patch\s+(\d+(?:\.\d+)+)`)},
	{"ru", regexp.MustCompile(`(?i)(?:обновлени[ея]|патч)\s+(\d+(?:\.\d+)+)`)},
	{"tr", regexp.MustCompile(`(?i)(\d+(?:\.\d+)+)\s+yama\s+notlar`)},
	{"pl", regexp.MustCompile(`(?i)opis\s+patcha\s+(\d+(?:\.\d+)+)`)},
	{"vi", regexp.MustCompile(`(?i)(?:cập\s+nhật|phiên\s+bản)\s+(\d+(?:\.\d+)+)`)},
	{"th", regexp.MustCompile(`แพตช์\s*(\d+(?:\.\d+)+)`)},
	{"en", regexp.MustCompile(`(?i)\b(?:update|version|ver\.?)\s*v?(\d+(?:\.\d+)+)`)},
}

// PatchTitleNormalizer maps localized patch titles onto one canonical label
type PatchTitleNormalizer struct {
	format   string
	patterns []titlePattern
}

// NewPatchTitleNormalizer creates a normalizer rendering labels with format,
// which must contain one %s verb
func NewPatchTitleNormalizer(format string) *PatchTitleNormalizer {
	if format == "" {
		format = DefaultTitleFormat
	}
	return &PatchTitleNormalizer{format: format, patterns: defaultTitlePatterns}
}

// Normalize returns the canonical label for text and whether any phrasing
// was recognized
func (n *PatchTitleNormalizer) Normalize(text string) (string, bool) {
	version, _, ok := n.Match(text)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(n.format, version), true
}

// Match returns the patch number and the language of the phrasing that
// recognized it. Full-width digits and punctuation are folded first.
func (n *PatchTitleNormalizer) Match(text string) (version, lang string, ok bool) {
	folded := utils.NormalizeWhitespace(norm.NFKC.String(text))
	if folded == "" {
		return "", "", false
	}
	for _, p := range n.patterns {
		if m := p.re.FindStringSubmatch(folded); len(m) > 1 {
			return strings.TrimSpace(m[1]), p.lang, true
		}
	}
	return "", "", false
}
