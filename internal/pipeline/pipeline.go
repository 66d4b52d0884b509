// Package pipeline ties capture, extraction, tag fetching and reduction into
// a single run against a browser page.
package pipeline

import (
	"context"
	"feedcloud/internal/capture"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"feedcloud/internal/feed"
	"feedcloud/internal/reduce"
	"feedcloud/internal/scroll"
	"feedcloud/internal/tags"
	"fmt"
	"strings"
)

// Status tells apart the ways a run can end, only StatusOK has a corpus worth rendering.
type Status int

const (
	StatusOK Status = iota
	StatusNoCaptures
	StatusNoText
	StatusNoTokens
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoCaptures:
		return "no-captures"
	case StatusNoText:
		return "no-text"
	case StatusNoTokens:
		return "no-tokens"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Page is a browser page that can be scrolled and observed.
type Page interface {
	scroll.Page
	capture.ResponseSource
}

// TagSource resolves item uris to their tags.
type TagSource interface {
	FetchAll(ctx context.Context, uris []string) []string
}

// Renderer receives the final corpus, it returns where the output went.
type Renderer interface {
	Render(ctx context.Context, corpus string) (string, error)
}

type Options struct {
	Capture capture.Options
	Scroll  scroll.Policy
}

func DefaultOptions() Options {
	return Options{
		Capture: capture.Options{
			Filter:      capture.NewFilter(""),
			MaxCaptures: capture.DefaultMaxCaptures,
		},
		Scroll: scroll.DefaultPolicy(),
	}
}

type Pipeline struct {
	opts      Options
	extractor feed.Extractor
	tags      TagSource
	reducer   reduce.Reducer
	renderer  Renderer
	time      chrono.API
	tel       telemetry.API
}

func New(
	opts Options,
	tagSource TagSource,
	reducer reduce.Reducer,
	renderer Renderer,
	time chrono.API,
	tel telemetry.API,
) Pipeline {
	assert.NotNil(tagSource)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.Scroll.MaxScrolls <= 0 {
		opts.Scroll = scroll.DefaultPolicy()
	}

	return Pipeline{
		opts:      opts,
		extractor: feed.NewExtractor(tel),
		tags:      tagSource,
		reducer:   reducer,
		renderer:  renderer,
		time:      time,
		tel:       telemetry.NewScopedAPI("pipeline", tel),
	}
}

// Report describes everything a run produced.
type Report struct {
	Status    Status
	Scroll    scroll.Result
	Captures  []capture.CapturedResponse
	URIs      []string
	Tags      []string
	Reduction reduce.Result
	// Output is where the renderer put the corpus, empty if it was not invoked.
	Output string
}

// CaptureFeed scrolls page until enough feed responses were captured or the
// scroll limit is hit.
func (p Pipeline) CaptureFeed(ctx context.Context, page Page) (scroll.Result, []capture.CapturedResponse, error) {
	buffer := capture.New(p.opts.Capture, p.time, p.tel)
	driver := scroll.NewDriver(page, buffer, p.opts.Scroll, p.time, p.tel)

	var result scroll.Result
	captured, err := buffer.Collect(ctx, page, func(ctx context.Context) error {
		err := driver.Prepare(ctx)
		if err != nil {
			return err
		}
		result, err = driver.Drive(ctx)
		return err
	})
	return result, captured, err
}

// Process turns captured payloads into a reduced corpus and renders it, it
// stops at the first stage that comes up empty.
func (p Pipeline) Process(ctx context.Context, report Report) (Report, error) {
	if len(report.Captures) == 0 {
		report.Status = StatusNoCaptures
		return report, nil
	}

	payloads := make([]string, len(report.Captures))
	for i, c := range report.Captures {
		payloads[i] = c.Payload
	}
	report.URIs = p.extractor.Extract(payloads)
	report.Tags = p.tags.FetchAll(ctx, report.URIs)
	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	text := tags.Text(report.Tags)
	if strings.TrimSpace(text) == "" {
		report.Status = StatusNoText
		return report, nil
	}

	report.Reduction = p.reducer.Reduce(ctx, text)
	if strings.TrimSpace(report.Reduction.Corpus) == "" {
		report.Status = StatusNoTokens
		return report, nil
	}

	report.Status = StatusOK
	if p.renderer == nil {
		return report, nil
	}
	output, err := p.renderer.Render(ctx, report.Reduction.Corpus)
	if err != nil {
		return report, fmt.Errorf("render corpus: %w", err)
	}
	report.Output = output
	return report, nil
}

// Run captures the feed from page and processes it.
func (p Pipeline) Run(ctx context.Context, page Page) (Report, error) {
	scrollResult, captured, err := p.CaptureFeed(ctx, page)
	report := Report{Scroll: scrollResult, Captures: captured}
	if err != nil {
		return report, err
	}
	p.tel.ReportDebug("capture finished", scrollResult.Scrolls, len(captured))
	return p.Process(ctx, report)
}
