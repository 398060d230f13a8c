package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"studio"
	"studio/internal/api/client"
	"studio/internal/api/models"
	"studio/internal/graph"
	"studio/internal/params"
	"studio/internal/realtime"
	"studio/internal/suggest"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssetStore loads and persists workflow assets.
type AssetStore interface {
	Get(ctx context.Context, id models.AssetID) (models.AssetEnvelope, error)
	Create(ctx context.Context, asset models.AssetEnvelope) (models.AssetEnvelope, error)
	Update(ctx context.Context, id models.AssetID, asset models.AssetEnvelope) (models.AssetEnvelope, error)
}

// EventPublisher announces session changes to editors watching the session.
type EventPublisher interface {
	Publish(sessionID, eventType string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) error { return nil }

type WorkflowDeps struct {
	Assets    AssetStore
	Engine    *suggest.Engine
	Events    EventPublisher
	Placement graph.Placement
	Logger    zerolog.Logger
}

// WorkflowService owns the open editing sessions. Each session holds one
// document and its parameter table; sessions share nothing.
type WorkflowService struct {
	logger    zerolog.Logger
	assets    AssetStore
	engine    *suggest.Engine
	events    EventPublisher
	placement graph.Placement

	mu       sync.RWMutex
	sessions map[string]*WorkflowSession
}

// NewWorkflowService wires the service from the process configuration: remote
// collaborators when their URLs are set, the in-process services otherwise.
func NewWorkflowService() *WorkflowService {
	cfg := studio.GetConfig()
	logger := studio.Logger

	var assets AssetStore = NewAssetService()
	if cfg.Collaborators.AssetServiceURL != "" {
		assets = client.NewAssetClient(cfg.Collaborators.AssetServiceURL, cfg.Collaborators.Timeout)
	}

	var stats client.StatsBackend = NewStatsService()
	if cfg.Collaborators.StatsServiceURL != "" {
		stats = client.NewStatsClient(cfg.Collaborators.StatsServiceURL, cfg.Collaborators.Timeout, cfg.Suggestions.RatePerSecond)
	}
	if studio.Redis != nil {
		stats = client.NewCachedStats(studio.Redis, stats, cfg.Suggestions.CacheTTL, logger)
	}

	var rules *suggest.RuleSet
	if cfg.Suggestions.RulesFile != "" {
		loaded, err := suggest.LoadRuleSetFile(cfg.Suggestions.RulesFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Suggestions.RulesFile).Msg("Failed to load suggestion rules")
		}
		rules = &loaded
	}

	var events EventPublisher = noopPublisher{}
	if studio.Nats != nil {
		events = realtime.NewPublisher(studio.Nats, cfg.TenantID)
	}

	return NewWorkflowServiceWith(WorkflowDeps{
		Assets: assets,
		Engine: suggest.NewEngine(suggest.Options{
			Rules:         rules,
			Stats:         stats,
			Reporter:      stats,
			Logger:        logger,
			StatsLimit:    cfg.Suggestions.StatsLimit,
			StatsTimeout:  cfg.Suggestions.StatsTimeout,
			ReportTimeout: cfg.Suggestions.ReportTimeout,
			Concurrency:   cfg.Suggestions.Concurrency,
		}),
		Events: events,
		Logger: logger,
	})
}

func NewWorkflowServiceWith(deps WorkflowDeps) *WorkflowService {
	s := &WorkflowService{
		logger:    deps.Logger,
		assets:    deps.Assets,
		engine:    deps.Engine,
		events:    deps.Events,
		placement: deps.Placement,
		sessions:  make(map[string]*WorkflowSession),
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.placement == nil {
		s.placement = graph.RandomPlacement
	}
	if s.engine == nil {
		s.engine = suggest.NewEngine(suggest.Options{Logger: deps.Logger})
	}
	return s
}

// Open loads a workflow asset into a new session.
func (s *WorkflowService) Open(ctx context.Context, assetID models.AssetID) (SessionView, error) {
	state, err := s.load(ctx, assetID)
	if err != nil {
		return SessionView{}, err
	}
	return s.register(state), nil
}

// New starts an unsaved session from a raw workflow document.
func (s *WorkflowService) New(name string, workflowJSON json.RawMessage) (SessionView, error) {
	data := models.WorkflowData{WorkflowJSON: workflowJSON, Parameters: models.Parameters{}}
	state, err := buildState("", strings.TrimSpace(name), 0, data, s.placement)
	if err != nil {
		return SessionView{}, err
	}
	return s.register(state), nil
}

func (s *WorkflowService) Get(sessionID string) (SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *WorkflowService) Close(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// CloseIdle drops sessions not used for longer than maxIdle and returns how many.
func (s *WorkflowService) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			closed++
		}
	}
	return closed
}

func (s *WorkflowService) Graph(sessionID string) (*graph.Graph, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.graph, nil
}

func (s *WorkflowService) Bindings(sessionID string) (models.Parameters, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.table.Parameters(), nil
}

func (s *WorkflowService) NodeBindings(sessionID, nodeID string) ([]params.NodeBinding, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.state.doc.Node(nodeID); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}
	return sess.state.table.BindingsForNode(nodeID), nil
}

func (s *WorkflowService) Warnings(sessionID string) ([]string, error) {
	view, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return view.Warnings, nil
}

// EditNode replaces every binding of nodeID in one step.
func (s *WorkflowService) EditNode(sessionID, nodeID string, entries []params.NodeBinding) error {
	return s.mutate(sessionID, func(state *workflowState) error {
		if _, ok := state.doc.Node(nodeID); !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
		}
		return state.table.ReplaceNode(state.doc, nodeID, entries)
	})
}

func (s *WorkflowService) Bind(sessionID, name, nodeID string, path models.FieldPath) error {
	return s.mutate(sessionID, func(state *workflowState) error {
		return state.table.Bind(state.doc, name, nodeID, path)
	})
}

func (s *WorkflowService) Rename(sessionID, oldName, newName string) error {
	return s.mutate(sessionID, func(state *workflowState) error {
		return state.table.Rename(oldName, newName)
	})
}

func (s *WorkflowService) Unbind(sessionID, name string) error {
	return s.mutate(sessionID, func(state *workflowState) error {
		return state.table.Unbind(name)
	})
}

// Suggest proposes parameters for one node. The result is dropped with
// ErrStaleDocument when another document was loaded meanwhile.
func (s *WorkflowService) Suggest(ctx context.Context, sessionID, nodeID string) ([]models.Suggestion, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	generation := sess.generation
	rec, ok := sess.state.doc.Node(nodeID)
	fields := sess.state.doc.ScalarFields(nodeID)
	seeds := sess.seeds(nodeID)
	sess.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}

	suggestions := s.engine.Suggest(ctx, rec.ClassType, fields, seeds)
	if err := s.checkGeneration(sess, generation); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// SuggestAll proposes parameters for every node of the session's document.
func (s *WorkflowService) SuggestAll(ctx context.Context, sessionID string) (map[string][]models.Suggestion, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	generation := sess.generation
	doc := sess.state.doc
	seeds := make(map[string]map[string]string)
	for _, id := range doc.NodeIDs() {
		if nodeSeeds := sess.seeds(id); len(nodeSeeds) > 0 {
			seeds[id] = nodeSeeds
		}
	}
	sess.mu.Unlock()

	suggestions := s.engine.SuggestAll(ctx, doc, seeds)
	if err := s.checkGeneration(sess, generation); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// Replace loads another asset into an existing session. Work still running
// against the previous document is discarded when it completes.
func (s *WorkflowService) Replace(ctx context.Context, sessionID string, assetID models.AssetID) (SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	state, err := s.load(ctx, assetID)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	sess.generation++
	sess.state = state
	sess.lastUsed = time.Now()
	view := sess.view()
	sess.mu.Unlock()

	s.publish(sessionID, realtime.EventDocumentReplaced, map[string]any{
		"assetId":    assetID,
		"generation": view.Generation,
	})
	return view, nil
}

type SaveResult struct {
	AssetID models.AssetID `json:"assetId"`
	Version int            `json:"version"`
}

// Save persists the document and its parameters. A failed save leaves the
// session untouched. After a successful save the parameter usage is reported
// in the background.
func (s *WorkflowService) Save(ctx context.Context, sessionID, name string) (SaveResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return SaveResult{}, err
	}

	sess.mu.Lock()
	generation := sess.generation
	assetID := sess.state.assetID
	if name = strings.TrimSpace(name); name == "" {
		name = sess.state.name
	}
	data, err := sess.payload()
	doc := sess.state.doc
	table := sess.state.table.Clone()
	sess.mu.Unlock()
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if name == "" {
		return SaveResult{}, fmt.Errorf("%w: a name is required", ErrPersistenceFailure)
	}

	envelope, err := models.NewWorkflowEnvelope(name, data)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	var saved models.AssetEnvelope
	if assetID == "" {
		saved, err = s.assets.Create(ctx, envelope)
	} else {
		saved, err = s.assets.Update(ctx, assetID, envelope)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session", sessionID).Str("asset", string(assetID)).Msg("Failed to save workflow")
		return SaveResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	sess.mu.Lock()
	if sess.generation == generation {
		sess.state.assetID = saved.ID
		sess.state.name = name
		sess.state.version = saved.Version
	}
	sess.mu.Unlock()

	s.engine.ReportUsage(ctx, suggest.UsageFromBindings(table, doc))
	result := SaveResult{AssetID: saved.ID, Version: saved.Version}
	s.publish(sessionID, realtime.EventSessionSaved, result)
	return result, nil
}

// Instantiate returns the session's document with the given parameter values applied.
func (s *WorkflowService) Instantiate(sessionID string, values map[string]any) (models.WorkflowDocument, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return models.WorkflowDocument{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastUsed = time.Now()
	return params.Apply(sess.state.doc, sess.state.table, values)
}

// Shutdown waits for background usage reports.
func (s *WorkflowService) Shutdown() {
	s.engine.Wait()
}

func (s *WorkflowService) load(ctx context.Context, assetID models.AssetID) (workflowState, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return workflowState{}, err
	}
	// the type is checked before anything else is read
	data, err := asset.WorkflowData()
	if err != nil {
		return workflowState{}, err
	}
	name := asset.Name
	if asset.ID != "" {
		assetID = asset.ID
	}
	return buildState(assetID, name, asset.Version, data, s.placement)
}

func (s *WorkflowService) register(state workflowState) SessionView {
	sess := &WorkflowSession{ID: uuid.NewString(), state: state, lastUsed: time.Now()}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.logger.Debug().Str("session", sess.ID).Str("asset", string(state.assetID)).Int("nodes", len(state.graph.Nodes)).Msg("Workflow session opened")
	return sess.view()
}

func (s *WorkflowService) session(sessionID string) (*WorkflowSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// mutate runs fn on the session state under its lock and announces the new
// parameter set when fn succeeds.
func (s *WorkflowService) mutate(sessionID string, fn func(state *workflowState) error) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	err = fn(&sess.state)
	sess.lastUsed = time.Now()
	parameters := sess.state.table.Parameters()
	sess.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(sessionID, realtime.EventParametersUpdated, parameters)
	return nil
}

func (s *WorkflowService) checkGeneration(sess *WorkflowSession, generation uint64) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastUsed = time.Now()
	if sess.generation != generation {
		s.logger.Warn().Str("session", sess.ID).Uint64("requested", generation).Uint64("current", sess.generation).Msg("Discarding suggestions for a replaced document")
		return ErrStaleDocument
	}
	return nil
}

func (s *WorkflowService) publish(sessionID, eventType string, payload any) {
	if err := s.events.Publish(sessionID, eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("session", sessionID).Str("event", eventType).Msg("Failed to publish session event")
	}
}

// IsValidationError reports whether err is a rejected edit the caller can fix.
func IsValidationError(err error) bool {
	return errors.Is(err, params.ErrDuplicateName) ||
		errors.Is(err, params.ErrInvalidPath) ||
		errors.Is(err, params.ErrInvalidName) ||
		errors.Is(err, params.ErrInvalidValue) ||
		errors.Is(err, params.ErrBrokenBinding) ||
		errors.Is(err, params.ErrUnknownParameter)
}
