// internal/scraper/patchnotes.go
package scraper

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const opExtractPatchNotes = "extractPatchNotes"

// FieldSelectors holds the chains used to build a PatchNote. Container
// locates the article cards; the other chains are evaluated inside each card.
type FieldSelectors struct {
	Container SelectorChain `json:"container"`
	Title     SelectorChain `json:"title"`
	URL       SelectorChain `json:"url"`
	Image     SelectorChain `json:"image"`
}

// PatchNote is one patch announcement found on a listing page
type PatchNote struct {
	Title    string `json:"title"`
	Version  string `json:"version"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	// VersionSynthesized marks a version derived from the clock
	VersionSynthesized bool     `json:"version_synthesized,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// ExtractPatchNotes finds up to limit article cards (all when limit <= 0) and
// extracts a patch note from each card whose title is recognized. The first
// container selector with any match decides the cards.
func (e *Engine) ExtractPatchNotes(doc *Document, fields FieldSelectors, limit int) ([]PatchNote, error) {
	if doc == nil || doc.document == nil {
		return nil, utils.WrapError(ErrNilDocument, utils.ErrCodeInvalidInput, "extract patch notes")
	}
	if err := fields.Container.Validate(); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidInput, "container chain")
	}
	if err := fields.Title.Validate(); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidInput, "title chain")
	}
	start := time.Now()

	cards := e.containers(doc, fields.Container)
	notes := make([]PatchNote, 0, cards.Length())
	var firstErr error
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		note, ok, err := e.patchNote(doc.Within(card), fields)
		if err != nil {
			firstErr = err
			return false
		}
		if ok {
			notes = append(notes, note)
		}
		return limit <= 0 || len(notes) < limit
	})
	if firstErr != nil {
		e.metrics.RecordOperation(opExtractPatchNotes, false, time.Since(start))
		return nil, firstErr
	}

	e.logger.WithFields(map[string]interface{}{
		"cards": cards.Length(),
		"notes": len(notes),
	}).Debug("patch notes extracted")
	e.metrics.RecordOperation(opExtractPatchNotes, len(notes) > 0, time.Since(start))
	return notes, nil
}

// containers returns every match of the first container selector that matches
func (e *Engine) containers(doc *Document, chain SelectorChain) *goquery.Selection {
	for _, selector := range chain {
		found, err := query(doc.Root(), selector)
		if err != nil {
			e.logger.WithField("selector", selector).Debugf("container selector failed: %v", err)
			e.metrics.RecordSelector(selector, false)
			continue
		}
		e.metrics.RecordSelector(selector, found.Length() > 0)
		if found.Length() > 0 {
			return found
		}
	}
	return doc.Root().Slice(0, 0)
}

func (e *Engine) patchNote(card SearchScope, fields FieldSelectors) (PatchNote, bool, error) {
	title, err := e.ExtractTitle(card, fields.Title)
	if err != nil {
		return PatchNote{}, false, err
	}
	if !title.Success {
		return PatchNote{}, false, nil
	}

	note := PatchNote{Title: title.Value}
	version := e.ExtractVersion(title.Value)
	note.Version = version.Value
	note.VersionSynthesized = version.Degraded

	link, err := e.ExtractURL(card, fields.URL, e.config.FallbackToDocument)
	if err != nil {
		return PatchNote{}, false, err
	}
	if link.Success {
		note.URL = link.Value
	} else {
		note.Warnings = append(note.Warnings, "url: "+link.Error)
	}

	image, err := e.ExtractImageURL(card, fields.Image, e.config.FallbackToDocument)
	if err != nil {
		return PatchNote{}, false, err
	}
	if image.Success {
		note.ImageURL = image.Value
	} else {
		note.Warnings = append(note.Warnings, "image: "+image.Error)
	}
	return note, true, nil
}
