// Package suggest proposes which inputs of a node are worth exposing as
// parameters, from a rule set refined by usage statistics.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/internal/api/models"
	"studio/internal/params"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrStatisticsUnavailable = errors.New("statistics unavailable")

// StatsProvider returns how often fields of a node type were exposed, most
// frequent first.
type StatsProvider interface {
	Recommend(ctx context.Context, classType string, limit int) ([]models.FieldStat, error)
}

// UsageReporter records which fields were exposed.
type UsageReporter interface {
	Report(ctx context.Context, items []models.UsageItem) error
}

type Options struct {
	Rules    *RuleSet
	Stats    StatsProvider
	Reporter UsageReporter
	Logger   zerolog.Logger

	StatsLimit    int
	StatsTimeout  time.Duration
	ReportTimeout time.Duration
	Concurrency   int
}

type Engine struct {
	logger        zerolog.Logger
	rules         RuleSet
	stats         StatsProvider
	reporter      UsageReporter
	statsLimit    int
	statsTimeout  time.Duration
	reportTimeout time.Duration
	concurrency   int

	reports sync.WaitGroup
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		logger:        opts.Logger,
		stats:         opts.Stats,
		reporter:      opts.Reporter,
		statsLimit:    opts.StatsLimit,
		statsTimeout:  opts.StatsTimeout,
		reportTimeout: opts.ReportTimeout,
		concurrency:   opts.Concurrency,
	}
	if opts.Rules != nil {
		e.rules = *opts.Rules
	} else {
		e.rules = DefaultRuleSet()
	}
	if e.statsLimit <= 0 {
		e.statsLimit = 10
	}
	if e.statsTimeout <= 0 {
		e.statsTimeout = 3 * time.Second
	}
	if e.reportTimeout <= 0 {
		e.reportTimeout = 5 * time.Second
	}
	if e.concurrency <= 0 {
		e.concurrency = 4
	}
	return e
}

// Suggest returns the suggestions for a node of classType whose scalar inputs
// are available. seeds maps field names the user already bound to the chosen
// parameter name; those always win over rules and statistics.
//
// Suggest never fails: when statistics cannot be fetched the rule-based
// result is returned as is.
func (slf *Engine) Suggest(ctx context.Context, classType string, available []string, seeds map[string]string) []models.Suggestion {
	present := make(map[string]bool, len(available))
	for _, field := range available {
		present[field] = true
	}

	result := []models.Suggestion{}
	for _, s := range slf.rules.Candidates(classType) {
		if present[s.Field] {
			result = append(result, s)
		}
	}

	if len(result) > 0 && slf.stats != nil {
		frequent, err := slf.frequentFields(ctx, classType)
		if err != nil {
			slf.logger.Warn().Err(err).Str("class_type", classType).Msg("suggestions served without statistics")
		}
		for i := range result {
			if frequent[result[i].Field] {
				result[i].AutoSelect = true
			}
		}
	}

	return applySeeds(result, present, seeds)
}

func (slf *Engine) frequentFields(ctx context.Context, classType string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, slf.statsTimeout)
	defer cancel()

	stats, err := slf.stats.Recommend(ctx, classType, slf.statsLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatisticsUnavailable, err)
	}
	frequent := make(map[string]bool, len(stats))
	for _, stat := range stats {
		if stat.Count > 0 {
			frequent[stat.Field] = true
		}
	}
	return frequent, nil
}

func applySeeds(result []models.Suggestion, present map[string]bool, seeds map[string]string) []models.Suggestion {
	if len(seeds) == 0 {
		return result
	}
	covered := make(map[string]bool, len(result))
	for i := range result {
		covered[result[i].Field] = true
		if name, ok := seeds[result[i].Field]; ok {
			result[i].FriendlyName = name
			result[i].AutoSelect = true
		}
	}

	var extra []models.Suggestion
	for field, name := range seeds {
		if !covered[field] && present[field] {
			extra = append(extra, models.Suggestion{Field: field, FriendlyName: name, AutoSelect: true})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Field < extra[j].Field })
	return append(result, extra...)
}

// SuggestAll runs Suggest for every node of doc, looking statistics up
// concurrently. Nodes without suggestions are omitted. seeds is keyed by node
// id, then by field.
func (slf *Engine) SuggestAll(ctx context.Context, doc models.WorkflowDocument, seeds map[string]map[string]string) map[string][]models.Suggestion {
	var (
		mu  sync.Mutex
		out = make(map[string][]models.Suggestion)
	)

	g := new(errgroup.Group)
	g.SetLimit(slf.concurrency)
	for _, id := range doc.NodeIDs() {
		rec := doc.Nodes[id]
		if rec.ClassType == "" {
			continue
		}
		g.Go(func() error {
			suggestions := slf.Suggest(ctx, rec.ClassType, rec.ScalarFields(), seeds[id])
			if len(suggestions) == 0 {
				return nil
			}
			mu.Lock()
			out[id] = suggestions
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ReportUsage sends items to the reporter in the background. The caller is
// never blocked and never sees the outcome; failures are logged.
func (slf *Engine) ReportUsage(ctx context.Context, items []models.UsageItem) {
	if slf.reporter == nil || len(items) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	slf.reports.Add(1)
	go func() {
		defer slf.reports.Done()
		defer func() {
			if r := recover(); r != nil {
				slf.logger.Error().Interface("panic", r).Msg("usage report panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, slf.reportTimeout)
		defer cancel()
		if err := slf.reporter.Report(ctx, items); err != nil {
			slf.logger.Warn().Err(err).Int("items", len(items)).Msg("usage report failed")
			return
		}
		slf.logger.Debug().Int("items", len(items)).Msg("usage reported")
	}()
}

// Wait blocks until every pending usage report has finished.
func (slf *Engine) Wait() {
	slf.reports.Wait()
}

// UsageFromBindings lists one usage item per binding whose node exists in doc.
// The field is the bound path without its "inputs/" prefix.
func UsageFromBindings(table *params.Table, doc models.WorkflowDocument) []models.UsageItem {
	items := []models.UsageItem{}
	for _, name := range table.Names() {
		b, _ := table.Get(name)
		rec, ok := doc.Node(b.NodeID)
		if !ok || rec.ClassType == "" {
			continue
		}
		items = append(items, models.UsageItem{ClassType: rec.ClassType, Field: b.Path.Field()})
	}
	return items
}
