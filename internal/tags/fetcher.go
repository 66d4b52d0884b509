package tags

import (
	"bytes"
	"context"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/telemetry"
	"feedcloud/lib/htmlutil"
	"feedcloud/lib/restyutil"
	"fmt"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_fetch = "fetcher.fetch"
	report_fetcher_parse = "fetcher.parse"
	report_fetcher_tags  = "fetcher.tags"
)

const (
	DefaultReferer   = "https://www.bilibili.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36 Edg/135.0.0.0"
	// TagSelector matches the tag labels on a video detail page.
	TagSelector  = "div.ordinary-tag"
	DefaultDelay = 300 * time.Millisecond
)

var tracer = otel.Tracer("feedcloud.internal.tags")
var meter = otel.Meter("feedcloud.internal.tags")

type Options struct {
	Referer   string
	UserAgent string
	// Delay is the minimum time between the start of two requests.
	Delay   time.Duration
	Timeout time.Duration
	// BypassCloudflare wraps the transport with browser-like TLS and headers.
	BypassCloudflare bool
	// InstrumentOutput receives full request/response dumps when debug logging is on.
	InstrumentOutput restyutil.InstrumentOutput
	// OnProgress is called after every uri handled by FetchAll.
	OnProgress func(done, total int, uri string)
}

type Fetcher struct {
	http       *resty.Client
	tel        telemetry.API
	fetched    metric.Int64Counter
	onProgress func(done, total int, uri string)
}

func NewFetcher(opts Options, tel telemetry.API) *Fetcher {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("tags", tel)

	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	if opts.BypassCloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("referer", opts.Referer)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)

	// a burst of 1 means every request after the first waits a full Delay
	rateLimiter := rate.NewLimiter(rate.Every(opts.Delay), 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)
	telemetry.InstrumentResty(client, tel)

	fetched, _ := meter.Int64Counter("feedcloud.tags.fetched")
	return &Fetcher{
		http:       client,
		tel:        tel,
		fetched:    fetched,
		onProgress: opts.OnProgress,
	}
}

// ParseTags returns the tag labels found in a detail page.
func ParseTags(ctx context.Context, body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return htmlutil.SelectLabels(ctx, doc, TagSelector), nil
}

// FetchTags fetches the detail page at uri and returns its tags, any failure
// is reported and results in an empty tag set.
func (f *Fetcher) FetchTags(ctx context.Context, uri string) []string {
	ctx, span := tracer.Start(ctx, "FetchTags")
	defer span.End()
	span.SetAttributes(attribute.String("uri", uri))

	res, err := f.http.R().
		SetContext(ctx).
		Get(uri)
	if err != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		f.tel.ReportDebug("fetch cancelled", uri)
		return []string{}
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		f.tel.ReportBroken(report_fetcher_fetch, err, uri)
		return []string{}
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "bad status")
		f.tel.ReportBroken(report_fetcher_fetch, fmt.Errorf("unexpected status %s", res.Status()), uri)
		return []string{}
	}

	tags, err := ParseTags(ctx, res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		f.tel.ReportBroken(report_fetcher_parse, err, uri)
		return []string{}
	}

	span.SetAttributes(attribute.StringSlice("tags", tags))
	f.fetched.Add(ctx, int64(len(tags)))
	return tags
}

// FetchAll fetches the tags of every uri one at a time, in order. duplicate
// uris are fetched again. it stops early only if ctx is done.
func (f *Fetcher) FetchAll(ctx context.Context, uris []string) []string {
	all := []string{}
	for i, uri := range uris {
		if ctx.Err() != nil {
			break
		}
		all = append(all, f.FetchTags(ctx, uri)...)
		if f.onProgress != nil {
			f.onProgress(i+1, len(uris), uri)
		}
	}
	f.tel.ReportCount(report_fetcher_tags, int64(len(all)))
	return all
}

// Text joins tags into the raw text handed to the reducer.
func Text(tags []string) string {
	return strings.Join(tags, " ")
}
