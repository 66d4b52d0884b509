// Package capture collects feed API responses observed by a browser page into
// a bounded buffer while something else drives the page.
package capture

import (
	"context"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_capture_read_body = "capture.read-body"
	report_capture_count     = "capture.count"
)

const DefaultMaxCaptures = 10

var meter = otel.Meter("feedcloud.internal.capture")

// ObservedResponse is a response the page has seen, the body is only read if
// the response is accepted since reading it costs a round trip to the browser.
type ObservedResponse struct {
	URL      string
	ReadBody func(ctx context.Context) (string, error)
}

// CapturedResponse is an accepted response, it is never modified once stored.
type CapturedResponse struct {
	URL        string
	Payload    string
	ObservedAt time.Time
}

// ResponseSource delivers observed responses on a channel, the channel is
// closed once unsubscribe is called (or ctx is done) and delivery has stopped.
type ResponseSource interface {
	Subscribe(ctx context.Context) (events <-chan ObservedResponse, unsubscribe func())
}

type Options struct {
	Filter      Filter
	MaxCaptures int
}

// Capture owns the capture buffer, it can only be appended to while not full
// and is only ever handed out as a copy.
type Capture struct {
	filter      Filter
	maxCaptures int
	time        chrono.API
	tel         telemetry.API
	accepted    metric.Int64Counter

	mu     sync.Mutex
	buffer []CapturedResponse
}

func New(opts Options, time chrono.API, tel telemetry.API) *Capture {
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.MaxCaptures <= 0 {
		opts.MaxCaptures = DefaultMaxCaptures
	}
	if opts.Filter.Pattern == "" {
		opts.Filter = NewFilter("")
	}

	accepted, _ := meter.Int64Counter("feedcloud.capture.accepted")
	return &Capture{
		filter:      opts.Filter,
		maxCaptures: opts.MaxCaptures,
		time:        time,
		tel:         telemetry.NewScopedAPI("capture", tel),
		accepted:    accepted,
		buffer:      make([]CapturedResponse, 0, opts.MaxCaptures),
	}
}

func (c *Capture) MaxCaptures() int {
	return c.maxCaptures
}

func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Full reports whether the capture quota has been reached.
func (c *Capture) Full() bool {
	return c.Count() >= c.maxCaptures
}

// Snapshot returns a copy of the buffer in observation order.
func (c *Capture) Snapshot() []CapturedResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedResponse, len(c.buffer))
	copy(out, c.buffer)
	return out
}

func (c *Capture) Payloads() []string {
	snapshot := c.Snapshot()
	out := make([]string, len(snapshot))
	for i, res := range snapshot {
		out[i] = res.Payload
	}
	return out
}

func (c *Capture) tryAppend(res CapturedResponse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buffer) >= c.maxCaptures {
		return false
	}
	c.buffer = append(c.buffer, res)
	return true
}

// Offer stores the response if it matches the feed endpoint and the buffer
// is not full yet. a body that cannot be read only skips this response.
func (c *Capture) Offer(ctx context.Context, res ObservedResponse) bool {
	if !c.filter.Accepts(res.URL) || c.Full() {
		return false
	}

	observedAt := c.time.Now()
	if res.ReadBody == nil {
		c.tel.ReportWarning(report_capture_read_body, fmt.Errorf("no body reader"), res.URL)
		return false
	}
	body, err := res.ReadBody(ctx)
	if err != nil {
		c.tel.ReportWarning(report_capture_read_body, err, res.URL)
		return false
	}

	stored := c.tryAppend(CapturedResponse{
		URL:        res.URL,
		Payload:    body,
		ObservedAt: observedAt,
	})
	if !stored {
		return false
	}

	c.accepted.Add(ctx, 1)
	count := c.Count()
	c.tel.ReportDebug("captured response", res.URL, len(body), fmt.Sprintf("%d/%d", count, c.maxCaptures))
	c.tel.ReportCount(report_capture_count, int64(count))
	return true
}

// Run consumes events until the channel is closed or ctx is done.
func (c *Capture) Run(ctx context.Context, events <-chan ObservedResponse) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-events:
			if !ok {
				return
			}
			c.Offer(ctx, res)
		}
	}
}

// Collect subscribes to source and consumes its events while drive runs,
// once drive returns the subscription is dropped and the buffer is returned.
func (c *Capture) Collect(
	ctx context.Context,
	source ResponseSource,
	drive func(ctx context.Context) error,
) ([]CapturedResponse, error) {
	assert.NotNil(source)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := source.Subscribe(runCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(runCtx, events)
	}()

	err := drive(ctx)

	unsubscribe()
	cancel()
	<-done

	return c.Snapshot(), err
}
