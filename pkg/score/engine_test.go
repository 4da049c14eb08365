package score

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mchmarny/xray/pkg/judge"
	"github.com/mchmarny/xray/pkg/profile"
	"github.com/mchmarny/xray/pkg/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeJudge struct {
	mu         sync.Mutex
	labels     []string
	excerpts   map[string][]string
	multiplier float64
	nilVerdict bool
	err        error
	inflight   atomic.Int32
	maxFlight  atomic.Int32
}

func (f *fakeJudge) Judge(_ context.Context, label string, excerpts []string) (*judge.Verdict, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	if n > f.maxFlight.Load() {
		f.maxFlight.Store(n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	if f.excerpts == nil {
		f.excerpts = make(map[string][]string)
	}
	f.excerpts[label] = excerpts

	if f.err != nil {
		return nil, f.err
	}
	if f.nilVerdict {
		return nil, nil
	}
	return &judge.Verdict{Multiplier: f.multiplier, Reasoning: "ok"}, nil
}

func newTestEngine(t *testing.T, name string, opts ...Option) *Engine {
	t.Helper()
	rules, err := rule.Default()
	require.NoError(t, err)
	profiles, err := profile.Default()
	require.NoError(t, err)
	e, err := NewEngine(rules, profiles, name, opts...)
	require.NoError(t, err)
	return e
}

var corpus = []string{
	"",
	"Do it.",
	specialist,
	strings.Repeat("never always must do not forbidden ", 40),
	"# Code Reviewer Agent\n\nYou are an expert reviewer. Your role is to review code.\n" +
		"## Rules\n- Never guess.\n- Always cite the source file.\n- Do not fabricate APIs.\n" +
		"If you are not sure, say so. If you cannot decide, escalate to a human.\n" +
		"Output format: markdown table with a heading per section.\n" +
		"Expected output: one row per finding. For example, given input foo.go you should return a table.\n",
	strings.Repeat("You are a specialist agent assistant expert. ", 30),
}

func TestNewEngine_UnknownProfile(t *testing.T) {
	rules, err := rule.Default()
	require.NoError(t, err)
	profiles, err := profile.Default()
	require.NoError(t, err)

	e, err := NewEngine(rules, profiles, "paranoid")
	assert.Nil(t, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)

	var ce *profile.ConfigError
	assert.ErrorAs(t, err, &ce)

	_, err = NewEngine(nil, profiles, profile.Balanced)
	assert.Error(t, err)
	_, err = NewEngine(rules, nil, profile.Balanced)
	assert.Error(t, err)

	e, err = NewEngine(rules, profiles, "")
	require.NoError(t, err)
	assert.Equal(t, profile.Balanced, e.Profile().Name)
}

func TestScore_Bounds(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"balanced", "security", "creative", "ci-gate", "assistant"} {
		for _, filtered := range []bool{false, true} {
			e := newTestEngine(t, name, WithDensityFilter(filtered))
			for i, text := range corpus {
				r := e.Score(ctx, fmt.Sprintf("doc-%d", i), text)
				for k, v := range r.Scores {
					assert.GreaterOrEqual(t, v, 0, "%s %s", name, k)
					assert.LessOrEqual(t, v, 100, "%s %s", name, k)
				}
				assert.GreaterOrEqual(t, r.Composite, 0)
				assert.LessOrEqual(t, r.Composite, 100)
				assert.Len(t, r.Scores, 6)
				assert.Equal(t, Finalized, r.State)
			}
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	e := newTestEngine(t, profile.Balanced, WithDensityFilter(true))
	for _, text := range corpus {
		a := e.Score(context.Background(), "a.md", text)
		b := e.Score(context.Background(), "a.md", text)
		assert.Equal(t, a, b)
	}
}

func TestScore_DoIt(t *testing.T) {
	for _, filtered := range []bool{false, true} {
		e := newTestEngine(t, profile.Balanced, WithDensityFilter(filtered))
		r := e.Score(context.Background(), "do.md", "Do it.")
		for _, k := range rule.Keys() {
			assert.Zero(t, r.Scores[k], k)
		}
		assert.Zero(t, r.Composite)
		assert.Equal(t, 1, r.Lines)
		assert.Equal(t, 2, r.Words)
		assert.Empty(t, r.Evidence)
	}
}

func TestScore_Specialist(t *testing.T) {
	e := newTestEngine(t, profile.Balanced)
	r := e.Score(context.Background(), "s.md", specialist)

	sum := 0
	for _, k := range rule.Keys() {
		sum += r.Scores[k]
		if k == rule.EscapeHatches {
			continue
		}
		assert.Positive(t, r.Scores[k], k)
		assert.Less(t, r.Scores[k], 100, k)
	}
	assert.Equal(t, int(math.Round(float64(sum)/6)), r.Composite)
	assert.Equal(t, 28, r.Composite)
	assert.Equal(t, profile.Balanced, r.Profile)
	assert.False(t, r.Strict())
}

func TestScore_DensityFilterLowersStuffedText(t *testing.T) {
	text := corpus[5]
	plain := newTestEngine(t, profile.Balanced).Score(context.Background(), "x", text)
	filtered := newTestEngine(t, profile.Balanced, WithDensityFilter(true)).Score(context.Background(), "x", text)
	assert.Less(t, filtered.Scores[rule.RoleClarity], plain.Scores[rule.RoleClarity])
}

func TestScore_Refine(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		want       func(raw int) int
	}{
		{"halved", 0.5, func(raw int) int { return int(math.Round(float64(raw) * 0.5)) }},
		{"kept", 1, func(raw int) int { return raw }},
		{"zeroed", 0, func(int) int { return 0 }},
		{"never raised", 1.7, func(raw int) int { return raw }},
		{"never negative", -2, func(int) int { return 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &fakeJudge{multiplier: tt.multiplier}
			e := newTestEngine(t, profile.Balanced, WithJudge(j))
			r := e.Score(context.Background(), "s.md", specialist)

			require.True(t, r.Strict())
			assert.Len(t, r.RawScores, 6)
			for _, k := range rule.Keys() {
				raw := r.RawScores[k]
				assert.Equal(t, tt.want(raw), r.Scores[k], k)
				assert.LessOrEqual(t, r.Scores[k], raw, k)
			}
			assert.Equal(t, e.Profile().Weights.Composite(r.Scores), r.Composite)
			assert.Equal(t, Finalized, r.State)
		})
	}
}

func TestScore_RefineCallsInDimensionOrder(t *testing.T) {
	j := &fakeJudge{multiplier: 1}
	e := newTestEngine(t, profile.Balanced, WithJudge(j))
	r := e.Score(context.Background(), "s.md", specialist)

	// escape hatches scored 0 and is not judged
	assert.Equal(t, []string{
		"Role Clarity",
		"Constraint Density",
		"Hallucination Guardrails",
		"Output Specificity",
		"Testability",
	}, j.labels)
	assert.NotContains(t, r.Rationale, rule.EscapeHatches)
	assert.Equal(t, "ok", r.Rationale[rule.Testability])

	// both role matches share one line
	assert.Len(t, r.Evidence[rule.RoleClarity], 2)
	assert.Len(t, j.excerpts["Role Clarity"], 1)
}

func TestScore_RefineSkipsZeroScores(t *testing.T) {
	j := &fakeJudge{multiplier: 0.5}
	e := newTestEngine(t, profile.Balanced, WithJudge(j))
	r := e.Score(context.Background(), "do.md", "Do it.")
	assert.Empty(t, j.labels)
	assert.Zero(t, r.Composite)
	assert.Empty(t, r.Rationale)
}

func TestScore_RefineFailureFallsBack(t *testing.T) {
	j := &fakeJudge{err: fmt.Errorf("%w: connection refused", judge.ErrTransport)}
	e := newTestEngine(t, profile.Balanced, WithJudge(j))
	heur := newTestEngine(t, profile.Balanced).Score(context.Background(), "s.md", specialist)

	r := e.Score(context.Background(), "s.md", specialist)
	assert.Equal(t, heur.Scores, r.Scores)
	assert.Equal(t, heur.Composite, r.Composite)
	assert.Len(t, j.labels, 5)
	for _, k := range rule.Keys() {
		if r.RawScores[k] == 0 {
			continue
		}
		assert.Equal(t, judge.FailedRationale, r.Rationale[k], k)
	}
}

func TestScore_RefineInvalidVerdict(t *testing.T) {
	tests := []struct {
		name  string
		judge *fakeJudge
	}{
		{"nan multiplier", &fakeJudge{multiplier: math.NaN()}},
		{"nil verdict", &fakeJudge{nilVerdict: true}},
	}

	heur := newTestEngine(t, profile.Balanced).Score(context.Background(), "s.md", specialist)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, profile.Balanced, WithJudge(tt.judge))

			var r *Report
			require.NotPanics(t, func() {
				r = e.Score(context.Background(), "s.md", specialist)
			})

			assert.Equal(t, heur.Scores, r.Scores)
			assert.Equal(t, heur.Composite, r.Composite)
			for _, k := range rule.Keys() {
				assert.GreaterOrEqual(t, r.Scores[k], 0, k)
				assert.LessOrEqual(t, r.Scores[k], 100, k)
				if r.RawScores[k] > 0 {
					assert.Equal(t, judge.FailedRationale, r.Rationale[k], k)
				}
			}
			assert.Equal(t, Finalized, r.State)
		})
	}
}

func TestScoreBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	inputs := make([]Input, 0, 60)
	for i := range 60 {
		inputs = append(inputs, Input{File: fmt.Sprintf("doc-%02d.md", i), Text: corpus[i%len(corpus)]})
	}

	j := &fakeJudge{multiplier: 0.5}
	e := newTestEngine(t, "ci-gate", WithWorkers(4), WithJudge(j), WithDensityFilter(true))

	reports, err := e.ScoreBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, reports, len(inputs))

	for i, r := range reports {
		assert.Equal(t, inputs[i].File, r.File)
		single := e.Score(context.Background(), inputs[i].File, inputs[i].Text)
		assert.Equal(t, single.Scores, r.Scores)
		assert.Equal(t, single.Composite, r.Composite)
		assert.Equal(t, "ci-gate", r.Profile)
	}
	assert.Equal(t, int32(1), j.maxFlight.Load())
}

func TestScoreBatch_Empty(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEngine(t, profile.Balanced)
	reports, err := e.ScoreBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestScoreBatch_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, profile.Balanced)
	_, err := e.ScoreBatch(ctx, []Input{{File: "a", Text: specialist}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
