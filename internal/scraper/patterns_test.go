package scraper

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/pipeline"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const listPage = `<html><body><ul><li>a</li><li>b</li><li id="x" class="y">c</li></ul><span></span><p class="c">t</p></body></html>`

func TestConfidenceScore(t *testing.T) {
	doc := mustDocument(t, listPage)

	tests := []struct {
		selector string
		want     float64
	}{
		{"#x", 1.0},
		{"span", 0.5},
		{"p.c", 0.8},
		{"li:first-child", 0.6},
	}
	for _, tt := range tests {
		sel, err := doc.Find(tt.selector)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, ConfidenceScore(sel), 1e-9, tt.selector)
	}
}

func TestElementPosition(t *testing.T) {
	doc := mustDocument(t, listPage)
	sel, err := doc.Find("#x")
	require.NoError(t, err)

	// ul > body > html
	assert.Equal(t, Position{X: 2, Y: 3}, ElementPosition(sel))
}

func TestMatchPatternsPriorityOrder(t *testing.T) {
	doc := mustDocument(t, listPage)
	e := newTestEngine(t, Config{})

	patterns := []PatternSpec{
		{Name: "low", Selectors: []string{"span"}, Priority: 1},
		{Name: "first-high", Selectors: []string{"li"}, Priority: 5},
		{Name: "missing", Selectors: []string{"table"}, Priority: 3},
		{Name: "second-high", Selectors: []string{"p"}, Priority: 5},
	}
	matches, err := e.MatchPatterns(doc, patterns)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.PatternName
	}
	assert.Equal(t, []string{"first-high", "second-high", "missing", "low"}, names)

	assert.Equal(t, 3, matches[0].TotalMatches)
	assert.Equal(t, "c", matches[0].Matches[2].Value)
	assert.Equal(t, "li", matches[0].Matches[2].Selector)
	assert.Zero(t, matches[2].TotalMatches)
	assert.NotNil(t, matches[2].Matches)

	// the caller's slice keeps its order
	assert.Equal(t, "low", patterns[0].Name)
}

func TestMatchPatternsValidatorAndTransformer(t *testing.T) {
	doc := mustDocument(t, listPage)
	e := newTestEngine(t, Config{})

	matches, err := e.MatchPatterns(doc, []PatternSpec{{
		Name:      "ids",
		Selectors: []string{"li"},
		Validator: func(sel *goquery.Selection) bool {
			_, ok := sel.Attr("id")
			return ok
		},
		Transformer: func(sel *goquery.Selection) any {
			return attrOr(sel, "class")
		},
	}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, 1, matches[0].TotalMatches)
	assert.Equal(t, "y", matches[0].Matches[0].Value)
	assert.Equal(t, 1.0, matches[0].Matches[0].ConfidenceScore)
}

func TestMatchPatternsInvalidSelector(t *testing.T) {
	doc := mustDocument(t, listPage)
	e := newTestEngine(t, Config{})

	matches, err := e.MatchPatterns(doc, []PatternSpec{{Name: "mixed", Selectors: []string{"li[", "p"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, matches[0].TotalMatches)
	assert.Equal(t, 0.0, e.MetricsSnapshot().PerSelectorSuccessRate["li["])
}

func TestMatchPatternsNilDocument(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.MatchPatterns(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilDocument)
	assert.True(t, utils.HasCode(err, utils.ErrCodeInvalidInput))
}

func TestPatternSpecsFromConfig(t *testing.T) {
	page := `<html><body>
<h2 class="title">Patch １４．２ Notes</h2>
<h2 class="title">Champion spotlight</h2>
<h2 class="title"></h2>
<a class="card" href="/patch-14-2">Read</a>
<a class="card">No link</a>
</body></html>`
	doc := mustDocument(t, page)
	e := newTestEngine(t, Config{})

	specs, err := PatternSpecsFromConfig(context.Background(), []config.PatternConfig{
		{
			Name:      "versions",
			Selectors: []string{"h2.title"},
			Priority:  2,
			Validator: &config.ValidatorConfig{Type: config.ValidatorNonEmpty},
			Transformer: &config.TransformerConfig{
				Type: config.TransformerText,
				Transform: pipeline.TransformList{
					{Type: "nfkc"},
					{Type: "extract_number"},
				},
			},
		},
		{
			Name:        "links",
			Selectors:   []string{"a.card"},
			Priority:    1,
			Validator:   &config.ValidatorConfig{Type: config.ValidatorHasAttr, Attribute: "href"},
			Transformer: &config.TransformerConfig{Type: config.TransformerAttr, Attribute: "href"},
		},
		{
			Name:      "long",
			Selectors: []string{"h2.title"},
			Validator: &config.ValidatorConfig{Type: config.ValidatorMinLength, MinLength: 16},
		},
		{
			Name:      "matching",
			Selectors: []string{"h2"},
			Validator: &config.ValidatorConfig{Type: config.ValidatorTextMatches, Pattern: `(?i)spotlight`},
		},
	})
	require.NoError(t, err)

	matches, err := e.MatchPatterns(doc, specs)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	byName := make(map[string]PatternMatch, len(matches))
	for _, m := range matches {
		byName[m.PatternName] = m
	}

	require.Equal(t, 1, byName["versions"].TotalMatches)
	assert.Equal(t, "14.2", byName["versions"].Matches[0].Value)

	require.Equal(t, 1, byName["links"].TotalMatches)
	assert.Equal(t, "/patch-14-2", byName["links"].Matches[0].Value)

	require.Equal(t, 2, byName["long"].TotalMatches)
	assert.Equal(t, "Patch １４．２ Notes", byName["long"].Matches[0].Value)

	require.Equal(t, 1, byName["matching"].TotalMatches)
	assert.Equal(t, "Champion spotlight", byName["matching"].Matches[0].Value)
}

func TestPatternSpecsFromConfigRejectsUnknownStrategy(t *testing.T) {
	_, err := PatternSpecsFromConfig(context.Background(), []config.PatternConfig{{
		Name:      "bad",
		Selectors: []string{"p"},
		Validator: &config.ValidatorConfig{Type: "bogus"},
	}})
	assert.ErrorContains(t, err, "unknown validator type")

	_, err = PatternSpecsFromConfig(context.Background(), []config.PatternConfig{{
		Name:        "bad",
		Selectors:   []string{"p"},
		Transformer: &config.TransformerConfig{Type: "bogus"},
	}})
	assert.ErrorContains(t, err, "unknown transformer type")
}

func TestPatternSpecsFromConfigReportsEveryPattern(t *testing.T) {
	_, err := PatternSpecsFromConfig(context.Background(), []config.PatternConfig{
		{Name: "first", Selectors: []string{"p"}, Validator: &config.ValidatorConfig{Type: "bogus"}},
		{Name: "fine", Selectors: []string{"h2"}},
		{Name: "third", Selectors: []string{"p"}, Transformer: &config.TransformerConfig{Type: "bogus"}},
	})
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeInvalidConfig))

	var multi *utils.MultiError
	require.ErrorAs(t, err, &multi)
	require.Len(t, multi.Errors(), 2)
	assert.Equal(t, 0, multi.Errors()[0].Context["index"])
	assert.Equal(t, 2, multi.Errors()[1].Context["index"])
	assert.Contains(t, multi.Errors()[1].Error(), `pattern "third"`)
}
