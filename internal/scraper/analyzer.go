// internal/scraper/analyzer.go
package scraper

import (
	"html"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"gonum.org/v1/gonum/stat"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const (
	opAnalyze = "analyze"

	// MinKeywordLength is the shortest word, in runes, kept as a keyword
	MinKeywordLength = 4
	// MaxKeywords caps the keyword list
	MaxKeywords = 10
	// CJKThreshold is the CJK share of non-space runes above which a text is
	// classified as Chinese, Japanese or Korean
	CJKThreshold = 0.1
)

var sentenceSplit = regexp.MustCompile(`[.!?。！？]+`)

// Analyze computes the enabled sub-analyses over the visible text of doc.
// Disabled parts are left nil and never computed.
func (e *Engine) Analyze(doc *Document, opts AnalysisOptions) (*ContentAnalysis, error) {
	if doc == nil || doc.document == nil {
		return nil, utils.WrapError(ErrNilDocument, utils.ErrCodeInvalidInput, "analyze")
	}
	start := time.Now()

	raw, err := doc.Html()
	if err != nil {
		e.metrics.RecordOperation(opAnalyze, false, time.Since(start))
		return nil, utils.WrapError(err, utils.ErrCodeTraversalFailed, "failed to serialize document")
	}
	text := utils.NormalizeWhitespace(html.UnescapeString(e.sanitizer.Sanitize(raw)))

	result := &ContentAnalysis{}
	if opts.Counts {
		result.Counts = e.countContent(doc, text)
	}
	if opts.Keywords {
		result.Keywords = extractKeywords(text)
	}
	if opts.Language {
		result.Language = detectLanguage(text)
	}
	if opts.Readability {
		result.Readability = readability(text)
	}

	result.ElapsedTime = time.Since(start)
	e.metrics.RecordOperation(opAnalyze, true, result.ElapsedTime)
	return result, nil
}

func (e *Engine) countContent(doc *Document, text string) *ContentCounts {
	root := doc.Root()
	chars := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			chars++
		}
	}
	return &ContentCounts{
		Words:      len(strings.Fields(text)),
		Characters: chars,
		Paragraphs: root.Find("p").Length(),
		Headings:   root.Find("h1, h2, h3, h4, h5, h6").Length(),
		Links:      root.Find("a[href]").Length(),
		Images:     root.Find("img").Length(),
	}
}

// tokenize lower-cases text and splits it on anything that is not a letter
// or a digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// extractKeywords ranks words of at least MinKeywordLength runes by
// frequency; ties are broken alphabetically
func extractKeywords(text string) []KeywordFrequency {
	counts := make(map[string]int)
	for _, w := range tokenize(text) {
		if len([]rune(w)) < MinKeywordLength {
			continue
		}
		counts[w]++
	}

	keywords := make([]KeywordFrequency, 0, len(counts))
	for w, c := range counts {
		keywords = append(keywords, KeywordFrequency{Word: w, Count: c})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Word < keywords[j].Word
	})
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return keywords
}

// detectLanguage classifies text by the share of CJK runes. Kana means
// Japanese, Hangul outnumbering Han means Korean, other CJK text is Chinese.
func detectLanguage(text string) *LanguageGuess {
	var total, han, kana, hangul int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Han, r):
			han++
		}
	}
	if total == 0 {
		return &LanguageGuess{Tag: language.Und.String()}
	}

	ratio := float64(han+kana+hangul) / float64(total)
	tag := language.English
	if ratio > CJKThreshold {
		switch {
		case kana > 0:
			tag = language.Japanese
		case hangul > han:
			tag = language.Korean
		default:
			tag = language.Chinese
		}
	}
	return &LanguageGuess{Tag: tag.String(), CJKRatio: ratio}
}

// readability computes a Flesch reading-ease style score with vowel-run
// syllable counting, clamped to [0, 100]
func readability(text string) *ReadabilityScore {
	var lengths []float64
	words, syllables := 0, 0
	for _, sentence := range sentenceSplit.Split(text, -1) {
		tokens := tokenize(sentence)
		if len(tokens) == 0 {
			continue
		}
		lengths = append(lengths, float64(len(tokens)))
		words += len(tokens)
		for _, w := range tokens {
			syllables += countSyllables(w)
		}
	}

	rs := &ReadabilityScore{Sentences: len(lengths), Words: words, Syllables: syllables}
	if words == 0 {
		rs.Level = "unknown"
		return rs
	}

	rs.MeanSentenceLength, rs.StdSentenceLength = stat.MeanStdDev(lengths, nil)
	if len(lengths) < 2 {
		rs.StdSentenceLength = 0
	}

	score := 206.835 -
		1.015*(float64(words)/float64(len(lengths))) -
		84.6*(float64(syllables)/float64(words))
	rs.Score = math.Max(0, math.Min(100, score))
	rs.Level = readabilityLevel(rs.Score)
	return rs
}

// countSyllables counts vowel runs, at least one per word
func countSyllables(word string) int {
	count := 0
	inVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !inVowel {
			count++
		}
		inVowel = vowel
	}
	return max(count, 1)
}

func readabilityLevel(score float64) string {
	switch {
	case score >= 90:
		return "very easy"
	case score >= 80:
		return "easy"
	case score >= 70:
		return "fairly easy"
	case score >= 60:
		return "standard"
	case score >= 50:
		return "fairly difficult"
	case score >= 30:
		return "difficult"
	default:
		return "very difficult"
	}
}
