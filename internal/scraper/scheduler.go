// internal/scraper/scheduler.go
package scraper

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const (
	opRunBatch = "runBatch"
	opTask     = "task:"
)

// RunBatch runs tasks in sequential batches of min(bound, remaining), highest
// priority first, with every task of a batch running concurrently. Results
// follow submission order. A failing or panicking task only fails its own
// outcome; a cancelled ctx fails the tasks that have not started yet.
func (e *Engine) RunBatch(ctx context.Context, doc *Document, tasks []Task, maxConcurrency int) []TaskOutcome {
	start := time.Now()
	bound := maxConcurrency
	if bound <= 0 {
		bound = e.config.MaxConcurrentTasks
	}

	tasks = slices.Clone(tasks)
	results := make([]TaskOutcome, len(tasks))
	order := make([]int, len(tasks))
	for i := range tasks {
		order[i] = i
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(tasks[b].Priority, tasks[a].Priority)
	})

	log := e.logger.WithFields(map[string]interface{}{
		"tasks": len(tasks),
		"bound": bound,
	})

	batch := 0
	for next := 0; next < len(order); batch++ {
		size := min(bound, len(order)-next)
		members := order[next : next+size]
		next += size
		current := batch

		var g errgroup.Group
		g.SetLimit(size)
		for _, idx := range members {
			task := tasks[idx]
			if err := e.waitTurn(ctx); err != nil {
				results[idx] = notStarted(task, err)
				continue
			}
			g.Go(func() error {
				results[idx] = e.runTask(doc, task, current)
				return nil
			})
		}
		_ = g.Wait()
		log.Debugf("batch %d finished with %d tasks", batch, size)
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		log.Infof("%d of %d tasks failed", failed, len(tasks))
	}
	e.metrics.RecordOperation(opRunBatch, failed == 0, time.Since(start))
	return results
}

// waitTurn applies the launch pacing and reports cancellation
func (e *Engine) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func notStarted(task Task, cause error) TaskOutcome {
	err := utils.WrapError(cause, utils.ErrCodeContextCanceled, "task not started")
	return TaskOutcome{
		TaskID:  task.ID,
		Kind:    task.Kind,
		Batch:   -1,
		Outcome: Outcome[any]{Error: err.Error()},
	}
}

// taskReducer turns one task into an outcome; there is one per TaskKind
type taskReducer func(doc *Document, task Task) (Outcome[any], error)

// runTask dispatches on the task kind. Panics become failure outcomes.
func (e *Engine) runTask(doc *Document, task Task, batch int) (result TaskOutcome) {
	start := time.Now()
	result = TaskOutcome{TaskID: task.ID, Kind: task.Kind, Batch: batch}

	defer func() {
		if r := recover(); r != nil {
			err := utils.NewError(utils.ErrCodeInternal, fmt.Sprintf("task panicked: %v", r)).
				WithContext("task_id", task.ID).
				Build()
			result.Outcome = Outcome[any]{Error: err.Error()}
			e.logger.WithField("task_id", task.ID).Errorf("task panicked: %v", r)
		}
		result.ElapsedTime = time.Since(start)
		e.metrics.RecordOperation(opTask+string(task.Kind), result.Success, result.ElapsedTime)
	}()

	if doc == nil || doc.document == nil {
		result.Error = utils.WrapError(ErrNilDocument, utils.ErrCodeInvalidInput, "task").Error()
		return result
	}

	var (
		out Outcome[any]
		err error
	)
	if reduce, ok := e.reducers[task.Kind]; ok {
		out, err = reduce(doc, task)
	} else {
		err = utils.NewError(utils.ErrCodeUnknownTaskKind, fmt.Sprintf("unknown task kind %q", task.Kind)).
			WithCause(ErrUnknownTaskKind).
			Build()
	}
	if err != nil {
		e.logger.WithField("task_id", task.ID).Debugf("task failed: %v", err)
		out = Outcome[any]{Error: err.Error()}
	}
	result.Outcome = out
	return result
}

// extractTask returns the text of the first match of the chain
func (e *Engine) extractTask(doc *Document, task Task) (Outcome[any], error) {
	found, err := e.Resolve(doc.Whole(), task.Selectors, ResolveOptions{})
	if err != nil {
		return Outcome[any]{}, err
	}
	out := Outcome[any]{
		Success:      found.Success,
		SelectorUsed: found.SelectorUsed,
		UsedFallback: found.UsedFallback,
		Attempts:     found.Attempts,
		Count:        found.Count,
	}
	if found.Success {
		out.Value = utils.NormalizeWhitespace(found.Value.Text())
	}
	return out, nil
}

// searchTask counts matches per selector; it succeeds when anything matched
func (e *Engine) searchTask(doc *Document, task Task) (Outcome[any], error) {
	if err := task.Selectors.Validate(); err != nil {
		return Outcome[any]{}, utils.WrapError(err, utils.ErrCodeInvalidInput, "search task")
	}

	res := SearchResult{PerSelector: make(map[string]int, len(task.Selectors))}
	out := Outcome[any]{}
	for _, selector := range task.Selectors {
		out.Attempts++
		found, err := query(doc.Root(), selector)
		if err != nil {
			e.metrics.RecordSelector(selector, false)
			res.PerSelector[selector] = 0
			continue
		}
		n := found.Length()
		e.metrics.RecordSelector(selector, n > 0)
		res.PerSelector[selector] = n
		res.Total += n
		if n > 0 && out.SelectorUsed == "" {
			out.SelectorUsed = selector
		}
	}
	res.Found = res.Total > 0
	out.Success = res.Found
	out.Count = res.Total
	out.Value = res
	return out, nil
}

// analyzeTask summarizes the structure of the first selector's matches, or of
// the whole document when the task has no selectors
func (e *Engine) analyzeTask(doc *Document, task Task) (Outcome[any], error) {
	target := doc.Root()
	out := Outcome[any]{}
	if len(task.Selectors) > 0 {
		found, err := e.Resolve(doc.Whole(), task.Selectors, ResolveOptions{})
		if err != nil {
			return Outcome[any]{}, err
		}
		out.Attempts = found.Attempts
		out.SelectorUsed = found.SelectorUsed
		if !found.Success {
			return out, nil
		}
		target = found.Value
	}

	res := StructureResult{
		TagCounts:  make(map[string]int),
		Attributes: make(map[string]int),
	}
	for _, n := range target.Nodes {
		walkElements(n, 0, &res)
	}
	res.ChildCount = target.Children().Length()

	out.Success = true
	out.Count = res.Elements
	out.Value = res
	return out, nil
}

// walkElements counts elements below n. Depth is relative to n.
func walkElements(n *html.Node, depth int, res *StructureResult) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			walkElements(c, depth, res)
			continue
		}
		res.Elements++
		res.TagCounts[strings.ToLower(c.Data)]++
		for _, a := range c.Attr {
			res.Attributes[a.Key]++
		}
		if depth+1 > res.MaxDepth {
			res.MaxDepth = depth + 1
		}
		walkElements(c, depth+1, res)
	}
}
