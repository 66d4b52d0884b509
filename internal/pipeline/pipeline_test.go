package pipeline

import (
	"context"
	"errors"
	"feedcloud/internal/capture"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"feedcloud/internal/reduce"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

// fakePage emits the next queued response every time it is scrolled, the
// send blocks until the capture loop has taken it.
type fakePage struct {
	queue   []capture.ObservedResponse
	scrolls int

	ctx    context.Context
	events chan capture.ObservedResponse
}

func (p *fakePage) Subscribe(ctx context.Context) (<-chan capture.ObservedResponse, func()) {
	ctx, cancel := context.WithCancel(ctx)
	p.ctx = ctx
	p.events = make(chan capture.ObservedResponse)
	return p.events, func() {
		cancel()
		close(p.events)
	}
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.scrolls++
	if len(p.queue) == 0 {
		return nil
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	select {
	case p.events <- next:
	case <-p.ctx.Done():
	}
	return nil
}

func (p *fakePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return nil
}

func feedResponse(n int, uris ...string) capture.ObservedResponse {
	body := `{"data":{"item":[`
	for i, uri := range uris {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"uri":%q}`, uri)
	}
	body += `]}}`
	return capture.ObservedResponse{
		URL: fmt.Sprintf("%s=1430650&fresh_idx=%d", capture.FeedEndpoint, n),
		ReadBody: func(context.Context) (string, error) {
			return body, nil
		},
	}
}

func staticResponse() capture.ObservedResponse {
	return capture.ObservedResponse{
		URL: "https://s1.hdslb.com/bfs/static/jinkela/long/js/home.js",
		ReadBody: func(context.Context) (string, error) {
			return "", errors.New("should never be read")
		},
	}
}

type fakeTags map[string][]string

func (f fakeTags) FetchAll(ctx context.Context, uris []string) []string {
	all := []string{}
	for _, uri := range uris {
		all = append(all, f[uri]...)
	}
	return all
}

func newPipeline(t *testing.T, tagSource TagSource, maxCaptures int) (Pipeline, string) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Capture.MaxCaptures = maxCaptures

	clock := chrono.NewFakeImpl(epoch)
	reducer := reduce.NewReducer(reduce.FieldsSegmenter{}, reduce.DefaultPolicy(), &telemetry.Recorder{})
	// the pipeline clock moves forward with every sleep, the renderer gets its own
	renderer := FileRenderer{Dir: dir, Time: chrono.NewFakeImpl(epoch)}
	return New(opts, tagSource, reducer, renderer, clock, &telemetry.Recorder{}), dir
}

func TestRunEndToEnd(t *testing.T) {
	page := &fakePage{queue: []capture.ObservedResponse{
		feedResponse(1, "https://www.bilibili.com/video/BV1", "https://www.bilibili.com/video/BV2"),
		staticResponse(),
		{URL: feedResponse(2).URL, ReadBody: func(context.Context) (string, error) { return `{"data":`, nil }},
		feedResponse(3, "https://www.bilibili.com/video/BV1"),
		feedResponse(4, "https://www.bilibili.com/video/BV3"),
	}}
	tagSource := fakeTags{
		"https://www.bilibili.com/video/BV1": {"游戏", "单机游戏"},
		"https://www.bilibili.com/video/BV2": {"音乐", "的"},
	}

	p, dir := newPipeline(t, tagSource, 3)
	report, err := p.Run(context.Background(), page)
	require.NoError(t, err)

	require.Equal(t, StatusOK, report.Status)
	require.True(t, report.Scroll.QuotaReached)
	require.LessOrEqual(t, report.Scroll.Scrolls, 5)
	require.Len(t, report.Captures, 3)
	require.Equal(t, []string{
		"https://www.bilibili.com/video/BV1",
		"https://www.bilibili.com/video/BV2",
		"https://www.bilibili.com/video/BV1",
	}, report.URIs)
	require.Equal(t, "游戏 单机游戏 音乐 游戏 单机游戏", report.Reduction.Corpus)

	expectedPath := filepath.Join(dir, "user_wordcloud_20250601_093000.txt")
	require.Equal(t, expectedPath, report.Output)
	contents, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	require.Equal(t, report.Reduction.Corpus, string(contents))
}

func TestRunWithoutCaptures(t *testing.T) {
	page := &fakePage{queue: []capture.ObservedResponse{staticResponse()}}
	p, dir := newPipeline(t, fakeTags{}, 10)

	report, err := p.Run(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, StatusNoCaptures, report.Status)
	require.Equal(t, 30, report.Scroll.Scrolls)
	require.False(t, report.Scroll.QuotaReached)
	require.Empty(t, report.Output)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestProcessEmptyStates(t *testing.T) {
	captures := []capture.CapturedResponse{
		{URL: capture.FeedEndpoint, Payload: `{"data":{"item":[{"uri":"u1"},{"uri":"u2"}]}}`},
	}

	cases := []struct {
		name     string
		tags     fakeTags
		expected Status
	}{
		{name: "no tags", tags: fakeTags{}, expected: StatusNoText},
		{name: "blank tags", tags: fakeTags{"u1": {" "}}, expected: StatusNoText},
		{name: "only noise", tags: fakeTags{"u1": {"的", "1"}, "u2": {"！"}}, expected: StatusNoTokens},
		{name: "something left", tags: fakeTags{"u2": {"科技"}}, expected: StatusOK},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			p, _ := newPipeline(t, test.tags, 10)
			report, err := p.Process(context.Background(), Report{Captures: captures})
			require.NoError(t, err)
			require.Equal(t, test.expected, report.Status)
			require.Equal(t, test.expected == StatusOK, report.Output != "")
		})
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "ok", StatusOK.String())
	require.Equal(t, "no-captures", StatusNoCaptures.String())
	require.Equal(t, "no-text", StatusNoText.String())
	require.Equal(t, "no-tokens", StatusNoTokens.String())
	require.Equal(t, "status(9)", Status(9).String())
}

func TestFileRendererForcesExtension(t *testing.T) {
	dir := t.TempDir()
	r := FileRenderer{Dir: dir, Name: "custom", Ext: ".txt", Time: chrono.NewFakeImpl(epoch)}

	path, err := r.Render(context.Background(), "游戏 音乐")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "custom.txt"), path)
}
