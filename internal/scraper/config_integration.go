// internal/scraper/config_integration.go
package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// ConfigFromEngineConfig converts the file configuration into engine settings
func ConfigFromEngineConfig(ec *config.EngineConfig) Config {
	s := ec.Engine
	return Config{
		CacheTTL:            s.CacheTTL,
		MaxSelectorAttempts: s.MaxSelectorAttempts,
		StreamChunkSize:     s.StreamChunkSize,
		MaxConcurrentTasks:  s.MaxConcurrentTasks,
		FingerprintLength:   s.FingerprintLength,
		TaskRateLimit:       s.TaskRateLimit,
		BaseURL:             s.BaseURL,
		FallbackToDocument:  s.FallbackEnabled(),
		TitleFormat:         s.TitleFormat,
		URLKeywords:         ec.Keywords.URL,
		ImageKeywords:       ec.Keywords.Image,
		ImageAttribute:      ec.Images.Attribute,
		LazyImageAttributes: ec.Images.LazyAttributes,
		FallbackImageChain:  ec.Images.FallbackSelectors,
	}
}

// NewEngineFromConfig builds an engine from a loaded configuration. Options
// are applied after the ones derived from the file.
func NewEngineFromConfig(ec *config.EngineConfig, opts ...Option) (*Engine, error) {
	if ec == nil {
		return nil, utils.NewError(utils.ErrCodeMissingConfig, "engine configuration cannot be nil").Build()
	}

	images := utils.NewImageURLValidator()
	images.RequireExtension = ec.Images.RequireExtension
	images.AllowedHosts = ec.Images.AllowedHosts

	all := append([]Option{WithImageValidator(images)}, opts...)
	return NewEngine(ConfigFromEngineConfig(ec), all...)
}

// AnalysisOptionsFromConfig maps the optional analyzer toggles
func AnalysisOptionsFromConfig(ac config.AnalysisConfig) AnalysisOptions {
	return AnalysisOptions{
		Counts:      config.Enabled(ac.Counts),
		Keywords:    config.Enabled(ac.Keywords),
		Language:    config.Enabled(ac.Language),
		Readability: config.Enabled(ac.Readability),
	}
}

// TasksFromConfig converts task declarations; tasks without an id get one
func TasksFromConfig(tcs []config.TaskConfig) []Task {
	tasks := make([]Task, 0, len(tcs))
	for _, tc := range tcs {
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		tasks = append(tasks, Task{
			ID:        id,
			Kind:      TaskKind(tc.Kind),
			Selectors: SelectorChain(tc.Selectors),
			Priority:  tc.Priority,
		})
	}
	return tasks
}

// PatternSpecsFromConfig turns declared patterns into specs with strategy
// closures. Transform rules run with ctx; a failing transform rejects the
// element. Every invalid pattern is reported in one *utils.MultiError whose
// members carry the pattern index in their context.
func PatternSpecsFromConfig(ctx context.Context, pcs []config.PatternConfig) ([]PatternSpec, error) {
	specs := make([]PatternSpec, 0, len(pcs))
	problems := utils.NewErrorCollector(len(pcs))
	for i, pc := range pcs {
		spec, err := patternSpecFromConfig(ctx, pc)
		if err != nil {
			problems.Add(utils.NewError(utils.ErrCodeInvalidConfig, fmt.Sprintf("pattern %q", pc.Name)).
				WithCause(err).
				WithContext("index", i).
				Build())
			continue
		}
		specs = append(specs, spec)
	}
	if err := problems.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

func patternSpecFromConfig(ctx context.Context, pc config.PatternConfig) (PatternSpec, error) {
	validator, err := buildValidator(pc.Validator)
	if err != nil {
		return PatternSpec{}, err
	}
	spec := PatternSpec{
		Name:      pc.Name,
		Selectors: pc.Selectors,
		Priority:  pc.Priority,
		Validator: validator,
	}
	if pc.Transformer == nil {
		return spec, nil
	}

	extract, err := buildExtractor(pc.Transformer)
	if err != nil {
		return PatternSpec{}, err
	}
	if len(pc.Transformer.Transform) == 0 {
		spec.Transformer = func(sel *goquery.Selection) any { return extract(sel) }
		return spec, nil
	}

	rules := pc.Transformer.Transform
	inner := validator
	// the transform must succeed for the element to count
	spec.Validator = func(sel *goquery.Selection) bool {
		if inner != nil && !inner(sel) {
			return false
		}
		_, err := rules.Apply(ctx, extract(sel))
		return err == nil
	}
	spec.Transformer = func(sel *goquery.Selection) any {
		out, _ := rules.Apply(ctx, extract(sel))
		return out
	}
	return spec, nil
}

func buildValidator(vc *config.ValidatorConfig) (func(*goquery.Selection) bool, error) {
	if vc == nil {
		return nil, nil
	}
	switch vc.Type {
	case config.ValidatorNonEmpty:
		return func(sel *goquery.Selection) bool {
			return strings.TrimSpace(sel.Text()) != ""
		}, nil
	case config.ValidatorHasAttr:
		attr := vc.Attribute
		return func(sel *goquery.Selection) bool {
			_, ok := sel.Attr(attr)
			return ok
		}, nil
	case config.ValidatorTextMatches:
		re, err := regexp.Compile(vc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid text pattern: %w", err)
		}
		return func(sel *goquery.Selection) bool {
			return re.MatchString(sel.Text())
		}, nil
	case config.ValidatorMinLength:
		minLen := vc.MinLength
		return func(sel *goquery.Selection) bool {
			return len([]rune(strings.TrimSpace(sel.Text()))) >= minLen
		}, nil
	default:
		return nil, fmt.Errorf("unknown validator type %q", vc.Type)
	}
}

func buildExtractor(tc *config.TransformerConfig) (func(*goquery.Selection) string, error) {
	switch tc.Type {
	case "", config.TransformerText:
		return func(sel *goquery.Selection) string {
			return strings.TrimSpace(sel.Text())
		}, nil
	case config.TransformerAttr:
		attr := tc.Attribute
		return func(sel *goquery.Selection) string {
			return attrOr(sel, attr)
		}, nil
	case config.TransformerHTML:
		return func(sel *goquery.Selection) string {
			h, err := goquery.OuterHtml(sel)
			if err != nil {
				return ""
			}
			return h
		}, nil
	default:
		return nil, fmt.Errorf("unknown transformer type %q", tc.Type)
	}
}

// FieldSelectorsFromConfig converts the per-field selector chains
func FieldSelectorsFromConfig(sc config.SelectorConfig) FieldSelectors {
	return FieldSelectors{
		Container: SelectorChain(sc.Container),
		Title:     SelectorChain(sc.Title),
		URL:       SelectorChain(sc.URL),
		Image:     SelectorChain(sc.Image),
	}
}
