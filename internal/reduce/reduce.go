package reduce

import (
	"context"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/telemetry"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const report_reduce_tokens = "reduce.tokens"

var tracer = otel.Tracer("feedcloud.internal.reduce")

// Result is the outcome of reducing some raw text.
type Result struct {
	// Tokens are the retained tokens in order, Corpus is them joined by spaces.
	Tokens []string
	Corpus string
	// Frequencies counts every token that passed filtering, before retention.
	Frequencies map[string]int
	Pruned      bool
}

func (r Result) Distinct() int {
	return len(r.Frequencies)
}

func (r Result) Empty() bool {
	return len(r.Tokens) == 0
}

type TokenCount struct {
	Token string
	Count int
}

// Top returns up to n retained tokens with the highest frequency, ties are
// broken by first occurrence.
func (r Result) Top(n int) []TokenCount {
	counts := []TokenCount{}
	seen := map[string]struct{}{}
	for _, t := range r.Tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		counts = append(counts, TokenCount{Token: t, Count: r.Frequencies[t]})
	}
	slices.SortStableFunc(counts, func(a, b TokenCount) int {
		return b.Count - a.Count
	})
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

type Reducer struct {
	segmenter Segmenter
	policy    Policy
	tel       telemetry.API
}

func NewReducer(segmenter Segmenter, policy Policy, tel telemetry.API) Reducer {
	assert.NotNil(segmenter)
	assert.NotNil(tel)
	return Reducer{
		segmenter: segmenter,
		policy:    policy,
		tel:       telemetry.NewScopedAPI("reduce", tel),
	}
}

// Filter trims every token and drops the ones the policy rejects.
func (r Reducer) Filter(tokens []string) []string {
	out := []string{}
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if r.policy.Keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r Reducer) Reduce(ctx context.Context, raw string) Result {
	_, span := tracer.Start(ctx, "Reduce")
	defer span.End()

	filtered := r.Filter(r.segmenter.Segment(raw))
	freq := Frequencies(filtered)
	retained, pruned := r.policy.Retain(filtered, freq)

	result := Result{
		Tokens:      retained,
		Corpus:      strings.Join(retained, " "),
		Frequencies: freq,
		Pruned:      pruned,
	}

	span.SetAttributes(
		attribute.Int("filtered", len(filtered)),
		attribute.Int("distinct", result.Distinct()),
		attribute.Int("retained", len(retained)),
		attribute.Bool("pruned", pruned),
	)
	r.tel.ReportDebug("reduced text", len(raw), len(filtered), result.Distinct(), len(retained))
	r.tel.ReportCount(report_reduce_tokens, int64(len(retained)))
	return result
}
