package scraper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

func TestRunBatchBatching(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{})

	tasks := []Task{
		{ID: "t1", Kind: TaskExtract, Selectors: SelectorChain{"h2"}},
		{ID: "t2", Kind: TaskSearch, Selectors: SelectorChain{"a", "img"}},
		{ID: "t3", Kind: TaskAnalyze, Selectors: SelectorChain{"article"}},
		{ID: "t4", Kind: TaskKind("translate"), Selectors: SelectorChain{"h2"}},
		{ID: "t5", Kind: TaskExtract, Selectors: SelectorChain{"footer a"}},
	}
	results := e.RunBatch(context.Background(), doc, tasks, 2)
	require.Len(t, results, len(tasks))

	perBatch := map[int]int{}
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.TaskID, "results keep submission order")
		perBatch[r.Batch]++
	}
	assert.Equal(t, map[int]int{0: 2, 1: 2, 2: 1}, perBatch)

	assert.True(t, results[0].Success)
	assert.Equal(t, "Patch 14.2 Notes", results[0].Value)
	assert.True(t, results[4].Success)
	assert.Equal(t, "About", results[4].Value)

	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, string(utils.ErrCodeUnknownTaskKind))
}

func TestRunBatchConcurrencyBound(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{})

	type startState struct{ inFlight, done int }
	var (
		mu       sync.Mutex
		inFlight int
		done     int
		starts   []startState
	)
	started := make(chan string)
	release := make(chan struct{})

	const blocking TaskKind = "blocking"
	e.reducers[blocking] = func(_ *Document, task Task) (Outcome[any], error) {
		mu.Lock()
		inFlight++
		starts = append(starts, startState{inFlight: inFlight, done: done})
		mu.Unlock()

		started <- task.ID
		<-release

		mu.Lock()
		inFlight--
		done++
		mu.Unlock()
		return Outcome[any]{Success: true, Value: task.ID}, nil
	}

	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = Task{Kind: blocking}
	}
	resultsCh := make(chan []TaskOutcome, 1)
	go func() {
		resultsCh <- e.RunBatch(context.Background(), doc, tasks, 2)
	}()

	for _, size := range []int{2, 2, 1} {
		for i := 0; i < size; i++ {
			select {
			case <-started:
			case <-time.After(2 * time.Second):
				t.Fatalf("expected %d tasks of the batch to be running", size)
			}
		}
		select {
		case id := <-started:
			t.Fatalf("task %s started before the batch drained", id)
		case <-time.After(50 * time.Millisecond):
		}
		for i := 0; i < size; i++ {
			release <- struct{}{}
		}
	}

	var results []TaskOutcome
	select {
	case results = <-resultsCh:
	case <-time.After(2 * time.Second):
		t.Fatal("RunBatch did not return")
	}
	for _, r := range results {
		assert.True(t, r.Success)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 5)
	peaks := []int{
		max(starts[0].inFlight, starts[1].inFlight),
		max(starts[2].inFlight, starts[3].inFlight),
		starts[4].inFlight,
	}
	assert.Equal(t, []int{2, 2, 1}, peaks)
	dones := make([]int, len(starts))
	for i, st := range starts {
		dones[i] = st.done
	}
	assert.Equal(t, []int{0, 0, 2, 2, 4}, dones)
}

func TestRunBatchPriority(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{})

	tasks := []Task{
		{ID: "low", Kind: TaskExtract, Selectors: SelectorChain{"h2"}, Priority: 1},
		{ID: "high", Kind: TaskExtract, Selectors: SelectorChain{"h2"}, Priority: 9},
		{ID: "mid", Kind: TaskExtract, Selectors: SelectorChain{"h2"}, Priority: 5},
	}
	results := e.RunBatch(context.Background(), doc, tasks, 1)

	assert.Equal(t, 2, results[0].Batch)
	assert.Equal(t, 0, results[1].Batch)
	assert.Equal(t, 1, results[2].Batch)
	assert.Equal(t, "low", tasks[0].ID)
}

func TestRunBatchSearchAndAnalyze(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{})

	results := e.RunBatch(context.Background(), doc, []Task{
		{Kind: TaskSearch, Selectors: SelectorChain{"a", "table"}},
		{Kind: TaskSearch, Selectors: SelectorChain{"table"}},
		{Kind: TaskAnalyze, Selectors: SelectorChain{"article"}},
		{Kind: TaskAnalyze},
	}, 0)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.NotEmpty(t, r.TaskID)
	}

	search, ok := results[0].Value.(SearchResult)
	require.True(t, ok)
	assert.True(t, results[0].Success)
	assert.True(t, search.Found)
	assert.Equal(t, 2, search.Total)
	assert.Equal(t, map[string]int{"a": 2, "table": 0}, search.PerSelector)

	empty, ok := results[1].Value.(SearchResult)
	require.True(t, ok)
	assert.False(t, results[1].Success)
	assert.False(t, empty.Found)

	structure, ok := results[2].Value.(StructureResult)
	require.True(t, ok)
	assert.True(t, results[2].Success)
	assert.Equal(t, 2, structure.Elements)
	assert.Equal(t, 2, structure.ChildCount)
	assert.Equal(t, 1, structure.MaxDepth)
	assert.Equal(t, map[string]int{"h2": 1, "img": 1}, structure.TagCounts)
	assert.Equal(t, 1, structure.Attributes["data-testid"])

	whole, ok := results[3].Value.(StructureResult)
	require.True(t, ok)
	assert.Equal(t, 1, whole.TagCounts["html"])
	assert.Equal(t, 2, whole.TagCounts["a"])
}

func TestRunBatchCancelled(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.RunBatch(ctx, doc, []Task{
		{ID: "a", Kind: TaskExtract, Selectors: SelectorChain{"h2"}},
		{ID: "b", Kind: TaskSearch, Selectors: SelectorChain{"a"}},
	}, 2)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, -1, r.Batch)
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, string(utils.ErrCodeContextCanceled))
	}
}

func TestRunBatchNilDocumentAndEmptyTasks(t *testing.T) {
	e := newTestEngine(t, Config{})

	assert.Empty(t, e.RunBatch(context.Background(), nil, nil, 2))

	results := e.RunBatch(context.Background(), nil, []Task{{ID: "a", Kind: TaskExtract, Selectors: SelectorChain{"h2"}}}, 2)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, string(utils.ErrCodeInvalidInput))
}

func TestRunBatchRecordsTaskMetrics(t *testing.T) {
	doc := mustDocument(t, newsPage)
	e := newTestEngine(t, Config{TaskRateLimit: 1000})

	e.RunBatch(context.Background(), doc, []Task{
		{Kind: TaskExtract, Selectors: SelectorChain{"h2"}},
		{Kind: TaskSearch, Selectors: SelectorChain{"h2"}},
	}, 2)

	m := e.MetricsSnapshot()
	assert.Equal(t, int64(1), m.PerOperationCount[opTask+string(TaskExtract)])
	assert.Equal(t, int64(1), m.PerOperationCount[opTask+string(TaskSearch)])
	assert.Equal(t, int64(1), m.PerOperationCount[opRunBatch])
}

func TestTasksFromConfig(t *testing.T) {
	tasks := TasksFromConfig([]config.TaskConfig{
		{ID: "fixed", Kind: "search", Selectors: []string{"a"}, Priority: 3},
		{Kind: "extract", Selectors: []string{"h2"}},
	})
	require.Len(t, tasks, 2)
	assert.Equal(t, Task{ID: "fixed", Kind: TaskSearch, Selectors: SelectorChain{"a"}, Priority: 3}, tasks[0])
	assert.NotEmpty(t, tasks[1].ID)
	assert.Equal(t, TaskExtract, tasks[1].Kind)
}
