package capture

import (
	"context"
	"errors"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"feedcloud/lib/testutil"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func feedUrl(n int) string {
	return fmt.Sprintf("%s=1430650&y_num=4&fresh_idx=%d", FeedEndpoint, n)
}

func bodyOf(s string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		return s, nil
	}
}

func TestFilterAccepts(t *testing.T) {
	f := NewFilter("")
	require.True(t, f.Accepts(feedUrl(1)))
	require.False(t, f.Accepts("https://api.bilibili.com/x/web-interface/nav"))
	require.False(t, f.Accepts(""))

	custom := NewFilter("/feed/")
	require.True(t, custom.Accepts("http://localhost/feed/?page=2"))
}

func TestOnFeedSite(t *testing.T) {
	require.True(t, OnFeedSite("https://www.bilibili.com/"))
	require.True(t, OnFeedSite("https://bilibili.com/video/BV1xx411c7mD"))
	require.False(t, OnFeedSite("https://notbilibili.com/"))
	require.False(t, OnFeedSite("https://example.com/?next=bilibili.com"))
	require.False(t, OnFeedSite("::"))
}

func TestOfferRespectsQuotaAndOrder(t *testing.T) {
	rec := &telemetry.Recorder{}
	c := New(Options{MaxCaptures: 3}, chrono.NewFakeImpl(epoch), rec)
	ctx := context.Background()

	require.False(t, c.Offer(ctx, ObservedResponse{URL: "https://www.bilibili.com/", ReadBody: bodyOf("ignored")}))
	for i := 0; i < 5; i++ {
		accepted := c.Offer(ctx, ObservedResponse{URL: feedUrl(i), ReadBody: bodyOf(fmt.Sprint(i))})
		require.Equal(t, i < 3, accepted, "offer %d", i)
	}

	require.True(t, c.Full())
	require.Equal(t, []string{"0", "1", "2"}, c.Payloads())
	require.Empty(t, rec.Reports("broken"))
	require.Empty(t, rec.Reports("warning"))
}

func TestOfferBodyFailureSkipsOnlyThatResponse(t *testing.T) {
	rec := &telemetry.Recorder{}
	c := New(Options{MaxCaptures: 2}, chrono.NewFakeImpl(epoch), rec)
	ctx := context.Background()

	failing := ObservedResponse{
		URL: feedUrl(0),
		ReadBody: func(context.Context) (string, error) {
			return "", errors.New("No resource with given identifier found")
		},
	}
	require.False(t, c.Offer(ctx, failing))
	require.False(t, c.Offer(ctx, ObservedResponse{URL: feedUrl(1)}))
	require.True(t, c.Offer(ctx, ObservedResponse{URL: feedUrl(2), ReadBody: bodyOf("ok")}))

	require.Equal(t, 1, c.Count())
	require.Equal(t, []string{"ok"}, c.Payloads())
	require.True(t, rec.Has("warning", report_capture_read_body))
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(Options{}, chrono.NewFakeImpl(epoch), &telemetry.Recorder{})
	require.Equal(t, DefaultMaxCaptures, c.MaxCaptures())

	c.Offer(context.Background(), ObservedResponse{URL: feedUrl(0), ReadBody: bodyOf("a")})
	snapshot := c.Snapshot()
	snapshot[0].Payload = "mutated"

	require.Equal(t, "a", c.Snapshot()[0].Payload)
	require.Equal(t, epoch, c.Snapshot()[0].ObservedAt)
}

func TestQuotaNeverExceededRandomized(t *testing.T) {
	const (
		kindFeed = iota
		kindStatic
		kindUnreadable
	)
	responseKind := testutil.RandomSwitch(5, 3, 2)

	rndm := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		maxCaptures := 1 + rndm.Intn(12)
		c := New(Options{MaxCaptures: maxCaptures}, chrono.NewFakeImpl(epoch), &telemetry.Recorder{})

		var expected []string
		n := rndm.Intn(40)
		for i := 0; i < n; i++ {
			payload := fmt.Sprintf("%d-%d", round, i)
			res := ObservedResponse{URL: feedUrl(i), ReadBody: bodyOf(payload)}

			kind := responseKind(rndm)
			switch kind {
			case kindStatic:
				res.URL = "https://s1.hdslb.com/static.js"
			case kindUnreadable:
				res.ReadBody = func(context.Context) (string, error) {
					return "", errors.New("no resource with given identifier found")
				}
			}

			c.Offer(context.Background(), res)
			if kind == kindFeed && len(expected) < maxCaptures {
				expected = append(expected, payload)
			}
			require.LessOrEqual(t, c.Count(), maxCaptures)
		}
		require.Equal(t, len(expected), c.Count())
		if len(expected) > 0 {
			require.Equal(t, expected, c.Payloads())
		}
	}
}

type chanSource struct {
	responses []ObservedResponse

	mu           sync.Mutex
	unsubscribed bool
}

func (s *chanSource) Subscribe(ctx context.Context) (<-chan ObservedResponse, func()) {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan ObservedResponse)
	go func() {
		defer close(events)
		for _, res := range s.responses {
			select {
			case events <- res:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return events, func() {
		s.mu.Lock()
		s.unsubscribed = true
		s.mu.Unlock()
		cancel()
	}
}

func TestCollectStopsWhenDriverReturns(t *testing.T) {
	source := &chanSource{}
	for i := 0; i < 20; i++ {
		source.responses = append(source.responses, ObservedResponse{URL: feedUrl(i), ReadBody: bodyOf(fmt.Sprint(i))})
	}

	c := New(Options{MaxCaptures: 4}, chrono.NewFakeImpl(epoch), &telemetry.Recorder{})
	drive := func(ctx context.Context) error {
		deadline := time.After(5 * time.Second)
		for !c.Full() {
			select {
			case <-deadline:
				return errors.New("quota never reached")
			case <-time.After(time.Millisecond):
			}
		}
		return nil
	}

	captured, err := c.Collect(context.Background(), source, drive)
	require.NoError(t, err)
	require.Len(t, captured, 4)
	for i, res := range captured {
		require.Equal(t, fmt.Sprint(i), res.Payload)
	}
	require.True(t, source.unsubscribed)
}

func TestCollectReturnsDriverError(t *testing.T) {
	c := New(Options{}, chrono.NewFakeImpl(epoch), &telemetry.Recorder{})
	_, err := c.Collect(context.Background(), &chanSource{}, func(context.Context) error {
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
}
