// Package score evaluates documents against the rule table and aggregates
// dimension scores into a profile weighted composite.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"runtime"

	"github.com/mchmarny/xray/pkg/judge"
	"github.com/mchmarny/xray/pkg/profile"
	"github.com/mchmarny/xray/pkg/rule"
	"golang.org/x/sync/errgroup"
)

// Input is one document of a batch.
type Input struct {
	File string
	Text string
}

// Engine scores documents with a fixed rule table and profile. It holds no
// per-document state and is safe for concurrent use.
type Engine struct {
	rules     *rule.Set
	profile   profile.Profile
	evaluator Evaluator
	judge     judge.Judge
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDensityFilter toggles the anti-gaming density discount.
func WithDensityFilter(on bool) Option {
	return func(e *Engine) {
		e.evaluator.DensityFilter = on
	}
}

// WithJudge enables refinement of heuristic scores by j.
func WithJudge(j judge.Judge) Option {
	return func(e *Engine) {
		e.judge = j
	}
}

// WithWorkers bounds the number of documents evaluated in parallel by
// ScoreBatch. Non-positive values use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine resolves profileName against profiles. An unknown profile is a
// *profile.ConfigError and no engine is returned.
func NewEngine(rules *rule.Set, profiles *profile.Set, profileName string, opts ...Option) (*Engine, error) {
	if rules == nil {
		return nil, errors.New("rule set required")
	}
	if profiles == nil {
		return nil, errors.New("profile set required")
	}
	if profileName == "" {
		profileName = profile.Balanced
	}

	p, err := profiles.Get(profileName)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rules:   rules,
		profile: p,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// Profile returns the profile the engine aggregates with.
func (e *Engine) Profile() profile.Profile { return e.profile }

// Strict reports whether a judge is configured.
func (e *Engine) Strict() bool { return e.judge != nil }

// Heuristics scores every dimension of text. It is pure: the same text
// always yields the same report.
func (e *Engine) Heuristics(file, text string) *Report {
	r := &Report{
		File:     file,
		Scores:   make(map[rule.Key]int, len(rule.Keys())),
		Evidence: make(map[rule.Key][]string),
		Profile:  e.profile.Name,
		Lines:    rule.LineCount(text),
		Words:    WordCount(text),
		State:    Unscored,
	}

	for _, d := range e.rules.Dimensions() {
		ds := e.evaluator.Evaluate(text, d.Rules)
		r.Scores[d.Key] = ds.Score
		if len(ds.Evidence) > 0 {
			r.Evidence[d.Key] = ds.Evidence
		}
	}

	r.Composite = e.profile.Weights.Composite(r.Scores)
	r.State = HeuristicsApplied
	return r
}

// Refine asks the judge about every dimension that scored above zero with
// evidence, one call at a time in dimension order. A failed call keeps the
// raw score for that dimension. Without a judge the report is unchanged.
func (e *Engine) Refine(ctx context.Context, r *Report) {
	if r.State != HeuristicsApplied || e.judge == nil {
		return
	}

	r.RawScores = maps.Clone(r.Scores)
	r.Rationale = make(map[rule.Key]string)

	for _, k := range rule.Keys() {
		raw := r.RawScores[k]
		evidence := r.Evidence[k]
		if raw <= 0 || len(evidence) == 0 {
			continue
		}

		v, err := e.judge.Judge(ctx, k.Label(), judge.Excerpts(evidence))
		if err == nil && (v == nil || math.IsNaN(v.Multiplier)) {
			err = fmt.Errorf("%w: no usable multiplier", judge.ErrParse)
		}
		if err != nil {
			slog.Warn("strict evaluation failed, using raw score",
				"file", r.File, "dimension", k, "error", err)
			r.Rationale[k] = judge.FailedRationale
			continue
		}

		m := max(0, min(1, v.Multiplier))
		r.Scores[k] = int(math.Round(float64(raw) * m))
		r.Rationale[k] = v.Reasoning
	}

	r.State = Refined
}

// finalize recomputes the composite from the final dimension scores.
func (e *Engine) finalize(r *Report) {
	r.Composite = e.profile.Weights.Composite(r.Scores)
	r.State = Finalized
}

// Score runs heuristics and, when a judge is configured, refinement on one
// document.
func (e *Engine) Score(ctx context.Context, file, text string) *Report {
	r := e.Heuristics(file, text)
	e.Refine(ctx, r)
	e.finalize(r)
	return r
}

// ScoreBatch evaluates the heuristics of all inputs in parallel, then
// refines the reports one document at a time in input order. Reports are
// returned in input order. Only cancellation of ctx fails the batch.
func (e *Engine) ScoreBatch(ctx context.Context, inputs []Input) ([]*Report, error) {
	reports := make([]*Report, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = e.Heuristics(in.File, in.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring batch: %w", err)
	}

	for _, r := range reports {
		e.Refine(ctx, r)
		e.finalize(r)
	}

	slog.Debug("batch scored", "documents", len(reports), "profile", e.profile.Name, "strict", e.Strict())
	return reports, nil
}
