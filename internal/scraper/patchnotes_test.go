package scraper

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const listingPage = `<html><body><div id="news">
<a class="card" href="/en-us/news/game-updates/patch-14-3-notes/">
  <h2>Patch 14.3 Notes</h2><img src="/img/patch-14-3-banner.jpg">
</a>
<a class="card" href="/en-us/news/game-updates/patch-14-2-notes/"><h2>Patch 14.2 Notes</h2></a>
<a class="card" href="/en-us/news/dev/roadmap/"><h2>Champion roadmap</h2></a>
</div></body></html>`

var listingFields = FieldSelectors{
	Container: SelectorChain{".missing", "a.card"},
	Title:     SelectorChain{"h2"},
	URL:       SelectorChain{"a"},
	Image:     SelectorChain{"img"},
}

func TestExtractPatchNotes(t *testing.T) {
	doc := mustDocument(t, listingPage)
	e := newTestEngine(t, Config{BaseURL: testBaseURL})

	notes, err := e.ExtractPatchNotes(doc, listingFields, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	assert.Equal(t, PatchNote{
		Title:    "Patch 14.3",
		Version:  "14.3",
		URL:      testBaseURL + "/en-us/news/game-updates/patch-14-3-notes/",
		ImageURL: testBaseURL + "/img/patch-14-3-banner.jpg",
	}, notes[0])

	assert.Equal(t, "Patch 14.2", notes[1].Title)
	assert.Empty(t, notes[1].ImageURL)
	assert.Equal(t, []string{"image: no image found"}, notes[1].Warnings)
}

func TestExtractPatchNotesLimit(t *testing.T) {
	doc := mustDocument(t, listingPage)
	e := newTestEngine(t, Config{})

	notes, err := e.ExtractPatchNotes(doc, listingFields, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "14.3", notes[0].Version)
}

func TestExtractPatchNotesNoCards(t *testing.T) {
	doc := mustDocument(t, `<p>nothing here</p>`)
	e := newTestEngine(t, Config{})

	notes, err := e.ExtractPatchNotes(doc, listingFields, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Equal(t, int64(1), e.MetricsSnapshot().FailOps)
}

func TestExtractPatchNotesSynthesizedVersion(t *testing.T) {
	doc := mustDocument(t, `<div class="card"><h2>パッチノート</h2></div>`)
	clock := utils.FixedClock{T: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	e := newTestEngine(t, Config{}, WithClock(clock), WithTitleNormalizer(&PatchTitleNormalizer{
		format:   "%s",
		patterns: []titlePattern{{lang: "ja", re: regexp.MustCompile(`(パッチノート)`)}},
	}))

	notes, err := e.ExtractPatchNotes(doc, FieldSelectors{Container: SelectorChain{"div.card"}, Title: SelectorChain{"h2"}}, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "2024.03.05", notes[0].Version)
	assert.True(t, notes[0].VersionSynthesized)
}

func TestExtractPatchNotesRejectsBadInput(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.ExtractPatchNotes(nil, listingFields, 0)
	assert.ErrorIs(t, err, ErrNilDocument)

	doc := mustDocument(t, listingPage)
	_, err = e.ExtractPatchNotes(doc, FieldSelectors{Title: SelectorChain{"h2"}}, 0)
	assert.ErrorIs(t, err, ErrEmptySelectorChain)
}

func TestFieldSelectorsFromConfig(t *testing.T) {
	fields := FieldSelectorsFromConfig(config.Default().Selectors)
	assert.NotEmpty(t, fields.Container)
	assert.Equal(t, "[data-testid='card-title']", fields.Title[0])
}
