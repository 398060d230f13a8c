package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"studio/internal/api/models"
	"studio/internal/graph"
	"studio/internal/params"
	"studio/internal/realtime"
	"studio/internal/suggest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplerWorkflow = `{
	"3": {"class_type": "KSampler", "inputs": {"seed": 5, "steps": 20, "cfg": 7.5, "model": ["4", 0], "positive": ["6", 0]}},
	"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "a.safetensors"}},
	"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat", "clip": ["4", 1]}, "_meta": {"title": "Positive"}}
}`

const imageWorkflow = `{
	"10": {"class_type": "LoadImage", "inputs": {"image": "in.png"}}
}`

type fakeStore struct {
	mu        sync.Mutex
	assets    map[models.AssetID]models.AssetEnvelope
	next      int
	createErr error
	updateErr error
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{assets: make(map[models.AssetID]models.AssetEnvelope), next: 100}
}

func (f *fakeStore) put(t *testing.T, id models.AssetID, name, workflowJSON string, parameters models.Parameters) {
	env, err := models.NewWorkflowEnvelope(name, models.WorkflowData{WorkflowJSON: json.RawMessage(workflowJSON), Parameters: parameters})
	require.NoError(t, err)
	env.ID = id
	env.Version = 1
	f.assets[id] = env
}

func (f *fakeStore) Get(_ context.Context, id models.AssetID) (models.AssetEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.assets[id]
	if !ok {
		return models.AssetEnvelope{}, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	return env, nil
}

func (f *fakeStore) Create(_ context.Context, env models.AssetEnvelope) (models.AssetEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.createErr != nil {
		return models.AssetEnvelope{}, f.createErr
	}
	f.next++
	env.ID = models.AssetID(strconv.Itoa(f.next))
	env.Version = 1
	f.assets[env.ID] = env
	return env, nil
}

func (f *fakeStore) Update(_ context.Context, id models.AssetID, env models.AssetEnvelope) (models.AssetEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update "+string(id))
	if f.updateErr != nil {
		return models.AssetEnvelope{}, f.updateErr
	}
	parent, ok := f.assets[id]
	if !ok {
		return models.AssetEnvelope{}, models.ErrNotFound
	}
	f.next++
	env.ID = models.AssetID(strconv.Itoa(f.next))
	env.Version = parent.Version + 1
	f.assets[env.ID] = env
	return env, nil
}

// blockingStats holds every lookup until release is closed.
type blockingStats struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStats() *blockingStats {
	return &blockingStats{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStats) Recommend(ctx context.Context, _ string, _ int) ([]models.FieldStat, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingReporter struct {
	mu    sync.Mutex
	items []models.UsageItem
	err   error
}

func (r *recordingReporter) Report(_ context.Context, items []models.UsageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
	return r.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ string, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

type fixture struct {
	svc      *WorkflowService
	store    *fakeStore
	reporter *recordingReporter
	events   *recordingPublisher
}

func newFixture(t *testing.T, stats suggest.StatsProvider) fixture {
	t.Helper()
	store := newFakeStore()
	store.put(t, "1", "sampler", samplerWorkflow, models.Parameters{
		"seed":   {NodeID: "3", Field: "inputs/seed"},
		"prompt": {NodeID: "6", Field: "inputs/text"},
	})
	store.put(t, "2", "loader", imageWorkflow, nil)
	store.assets["9"] = models.AssetEnvelope{ID: "9", Type: models.AssetTypeImage, Name: "cat.png", Data: json.RawMessage(`{"url": "x"}`)}

	reporter := &recordingReporter{}
	events := &recordingPublisher{}
	svc := NewWorkflowServiceWith(WorkflowDeps{
		Assets: store,
		Engine: suggest.NewEngine(suggest.Options{
			Stats:        stats,
			Reporter:     reporter,
			Logger:       zerolog.Nop(),
			StatsTimeout: 2 * time.Second,
		}),
		Events:    events,
		Placement: graph.GridPlacement{Columns: 2, Spacing: 100},
		Logger:    zerolog.Nop(),
	})
	return fixture{svc: svc, store: store, reporter: reporter, events: events}
}

func TestWorkflowService_Open(t *testing.T) {
	f := newFixture(t, nil)

	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, models.AssetID("1"), view.AssetID)
	assert.Equal(t, "sampler", view.Name)
	assert.Len(t, view.Graph.Nodes, 3)
	assert.Len(t, view.Graph.Edges, 3)
	assert.Empty(t, view.Broken)
	assert.Empty(t, view.Warnings)
	assert.Equal(t, models.ParameterRef{NodeID: "3", Field: "inputs/seed"}, view.Parameters["seed"])
}

func TestWorkflowService_OpenRejectsOtherAssetTypes(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Open(context.Background(), "9")
	assert.ErrorIs(t, err, ErrNotWorkflow)

	_, err = f.svc.Open(context.Background(), "404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkflowService_OpenReportsBrokenBindings(t *testing.T) {
	f := newFixture(t, nil)
	f.store.put(t, "5", "broken", imageWorkflow, models.Parameters{
		"gone": {NodeID: "99", Field: "inputs/seed"},
	})

	view, err := f.svc.Open(context.Background(), "5")
	require.NoError(t, err)

	require.Len(t, view.Broken, 1)
	assert.Equal(t, "gone", view.Broken[0].Name)
	assert.Contains(t, view.Parameters, "gone", "broken bindings are kept")
	assert.Len(t, view.Warnings, 1)
}

func TestWorkflowService_EditNodeKeepsOtherNodes(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	err = f.svc.EditNode(view.ID, "3", []params.NodeBinding{
		{Path: "inputs/steps", Name: "steps"},
		{Path: "inputs/cfg", Name: "cfg"},
	})
	require.NoError(t, err)

	bindings, err := f.svc.Bindings(view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Parameters{
		"steps":  {NodeID: "3", Field: "inputs/steps"},
		"cfg":    {NodeID: "3", Field: "inputs/cfg"},
		"prompt": {NodeID: "6", Field: "inputs/text"},
	}, bindings)
	assert.Equal(t, []string{realtime.EventParametersUpdated}, f.events.list())
}

func TestWorkflowService_EditNodeRejectsNameOfOtherNode(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	err = f.svc.EditNode(view.ID, "3", []params.NodeBinding{{Path: "inputs/steps", Name: "prompt"}})
	assert.ErrorIs(t, err, params.ErrDuplicateName)
	assert.True(t, IsValidationError(err))

	bindings, err := f.svc.Bindings(view.ID)
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
	assert.Empty(t, f.events.list())

	err = f.svc.EditNode(view.ID, "77", nil)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestWorkflowService_BindRenameUnbind(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Bind(view.ID, "cfg", "3", "inputs/cfg"))
	require.NoError(t, f.svc.Rename(view.ID, "cfg", "guidance"))
	require.NoError(t, f.svc.Unbind(view.ID, "seed"))

	bindings, err := f.svc.Bindings(view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Parameters{
		"guidance": {NodeID: "3", Field: "inputs/cfg"},
		"prompt":   {NodeID: "6", Field: "inputs/text"},
	}, bindings)

	err = f.svc.Bind(view.ID, "model", "3", "inputs/model")
	assert.ErrorIs(t, err, params.ErrInvalidPath)

	_, err = f.svc.Bindings("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWorkflowService_SuggestSeedsFromBindings(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	suggestions, err := f.svc.Suggest(context.Background(), view.ID, "3")
	require.NoError(t, err)
	assert.Equal(t, []models.Suggestion{
		{Field: "seed", FriendlyName: "seed", AutoSelect: true},
		{Field: "steps", FriendlyName: "steps", AutoSelect: true},
		{Field: "cfg", FriendlyName: "cfg", AutoSelect: true},
	}, suggestions)

	require.NoError(t, f.svc.Rename(view.ID, "seed", "noise_seed"))
	suggestions, err = f.svc.Suggest(context.Background(), view.ID, "3")
	require.NoError(t, err)
	assert.Equal(t, "noise_seed", suggestions[0].FriendlyName)

	all, err := f.svc.SuggestAll(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "3")
	assert.Contains(t, all, "6")
}

func TestWorkflowService_DiscardsSuggestionsForReplacedDocument(t *testing.T) {
	stats := newBlockingStats()
	f := newFixture(t, stats)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Suggest(context.Background(), view.ID, "3")
		done <- err
	}()

	<-stats.started
	replaced, err := f.svc.Replace(context.Background(), view.ID, "2")
	require.NoError(t, err)
	assert.Equal(t, view.Generation+1, replaced.Generation)
	close(stats.release)

	assert.ErrorIs(t, <-done, ErrStaleDocument)

	suggestions, err := f.svc.Suggest(context.Background(), view.ID, "10")
	require.NoError(t, err)
	assert.Equal(t, "input_image", suggestions[0].FriendlyName)
	assert.Equal(t, []string{realtime.EventDocumentReplaced}, f.events.list())
}

func TestWorkflowService_SaveCreatesAndReports(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.New("draft", json.RawMessage(imageWorkflow))
	require.NoError(t, err)
	require.NoError(t, f.svc.Bind(view.ID, "input_image", "10", "inputs/image"))

	result, err := f.svc.Save(context.Background(), view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.AssetID("101"), result.AssetID)
	assert.Equal(t, 1, result.Version)

	stored, err := f.store.Get(context.Background(), result.AssetID)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.Name)
	data, err := stored.WorkflowData()
	require.NoError(t, err)
	assert.Equal(t, models.Parameters{"input_image": {NodeID: "10", Field: "inputs/image"}}, data.Parameters)

	f.svc.Shutdown()
	f.reporter.mu.Lock()
	assert.Equal(t, []models.UsageItem{{ClassType: "LoadImage", Field: "image"}}, f.reporter.items)
	f.reporter.mu.Unlock()

	after, err := f.svc.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, result.AssetID, after.AssetID)
	assert.Equal(t, []string{realtime.EventParametersUpdated, realtime.EventSessionSaved}, f.events.list())
}

func TestWorkflowService_SaveUpdatesOpenedAsset(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	result, err := f.svc.Save(context.Background(), view.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.Equal(t, []string{"update 1"}, f.store.calls)

	// a second save versions the new asset
	_, err = f.svc.Save(context.Background(), view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"update 1", "update " + string(result.AssetID)}, f.store.calls)
}

func TestWorkflowService_FailedSaveKeepsSession(t *testing.T) {
	f := newFixture(t, nil)
	f.store.createErr = errors.New("disk full")
	view, err := f.svc.New("draft", json.RawMessage(imageWorkflow))
	require.NoError(t, err)
	require.NoError(t, f.svc.Bind(view.ID, "input_image", "10", "inputs/image"))

	_, err = f.svc.Save(context.Background(), view.ID, "")
	assert.ErrorIs(t, err, ErrPersistenceFailure)

	after, err := f.svc.Get(view.ID)
	require.NoError(t, err)
	assert.Empty(t, after.AssetID)
	assert.Len(t, after.Parameters, 1)

	f.svc.Shutdown()
	assert.Empty(t, f.reporter.items)
	assert.NotContains(t, f.events.list(), realtime.EventSessionSaved)
}

func TestWorkflowService_SaveSucceedsWhenReportFails(t *testing.T) {
	f := newFixture(t, nil)
	f.reporter.err = errors.New("stats down")
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	_, err = f.svc.Save(context.Background(), view.ID, "")
	require.NoError(t, err)
	f.svc.Shutdown()
}

func TestWorkflowService_SaveRequiresName(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.New("  ", json.RawMessage(imageWorkflow))
	require.NoError(t, err)

	_, err = f.svc.Save(context.Background(), view.ID, "")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Empty(t, f.store.calls)
}

func TestWorkflowService_Instantiate(t *testing.T) {
	f := newFixture(t, nil)
	view, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)

	doc, err := f.svc.Instantiate(view.ID, map[string]any{"seed": 42, "prompt": "a dog"})
	require.NoError(t, err)

	seed, ok := doc.LookupField("3", "inputs/seed")
	require.True(t, ok)
	assert.JSONEq(t, `42`, string(seed.Raw()))
	text, ok := doc.LookupField("6", "inputs/text")
	require.True(t, ok)
	assert.JSONEq(t, `"a dog"`, string(text.Raw()))

	_, err = f.svc.Instantiate(view.ID, map[string]any{"nope": 1})
	assert.ErrorIs(t, err, params.ErrUnknownParameter)
}

func TestWorkflowService_CloseAndCloseIdle(t *testing.T) {
	f := newFixture(t, nil)
	first, err := f.svc.Open(context.Background(), "1")
	require.NoError(t, err)
	second, err := f.svc.Open(context.Background(), "2")
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(first.ID))
	assert.ErrorIs(t, f.svc.Close(first.ID), ErrSessionNotFound)

	assert.Equal(t, 0, f.svc.CloseIdle(time.Hour))
	assert.Equal(t, 1, f.svc.CloseIdle(0))
	_, err = f.svc.Get(second.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
