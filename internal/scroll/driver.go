package scroll

import (
	"context"
	"errors"
	"feedcloud/internal/components/assert"
	"feedcloud/internal/components/chrono"
	"feedcloud/internal/components/telemetry"
	"time"
)

const (
	report_driver_scroll    = "driver.scroll"
	report_driver_idle_wait = "driver.idle-wait"
	report_driver_scrolls   = "driver.scrolls"
)

// Page is the part of a browser page the driver needs.
type Page interface {
	// ScrollToBottom scrolls the page to its current maximum extent.
	ScrollToBottom(ctx context.Context) error
	// WaitNetworkIdle blocks until the page has no pending requests or
	// timeout elapses, in which case it returns context.DeadlineExceeded.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
}

// Quota tells the driver when enough has been collected.
type Quota interface {
	Full() bool
}

// Policy holds the loop bounds and waits, see DefaultPolicy.
type Policy struct {
	MaxScrolls int
	// SettleDelay is slept after every scroll to let new content start loading.
	SettleDelay time.Duration
	// IdleTimeout bounds each wait for network quiescence.
	IdleTimeout time.Duration
	// BackoffEvery is the number of scrolls between extended waits, 0 disables them.
	BackoffEvery int
	BackoffDelay time.Duration
	// InitialDelay is slept by Prepare after the first network idle wait.
	InitialDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxScrolls:   30,
		SettleDelay:  time.Second,
		IdleTimeout:  5 * time.Second,
		BackoffEvery: 5,
		BackoffDelay: 2100 * time.Millisecond,
		InitialDelay: 2 * time.Second,
	}
}

type Result struct {
	Scrolls      int
	QuotaReached bool
}

type Driver struct {
	page   Page
	quota  Quota
	policy Policy
	time   chrono.API
	tel    telemetry.API

	scrollCount int
}

func NewDriver(page Page, quota Quota, policy Policy, time chrono.API, tel telemetry.API) *Driver {
	assert.NotNil(page)
	assert.NotNil(quota)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.Positive(policy.MaxScrolls)

	return &Driver{
		page:   page,
		quota:  quota,
		policy: policy,
		time:   time,
		tel:    telemetry.NewScopedAPI("scroll", tel),
	}
}

func (d *Driver) ScrollCount() int {
	return d.scrollCount
}

// waitIdle only fails when ctx itself is done, an idle wait timing out is expected.
func (d *Driver) waitIdle(ctx context.Context) error {
	err := d.page.WaitNetworkIdle(ctx, d.policy.IdleTimeout)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		d.tel.ReportDebug("network idle wait timed out", d.scrollCount, d.policy.IdleTimeout.String())
		return nil
	}
	if err != nil {
		d.tel.ReportWarning(report_driver_idle_wait, err)
	}
	return nil
}

// Prepare waits for the freshly loaded page to settle before scrolling starts.
func (d *Driver) Prepare(ctx context.Context) error {
	err := d.waitIdle(ctx)
	if err != nil {
		return err
	}
	return d.time.Sleep(ctx, d.policy.InitialDelay)
}

func (d *Driver) running() bool {
	return !d.quota.Full() && d.scrollCount < d.policy.MaxScrolls
}

// Drive scrolls until the quota is full or MaxScrolls is reached. neither is an
// error, callers look at how much was captured. only ctx ending returns an error.
func (d *Driver) Drive(ctx context.Context) (Result, error) {
	for d.running() {
		err := d.page.ScrollToBottom(ctx)
		if ctx.Err() != nil {
			return d.result(), ctx.Err()
		}
		if err != nil {
			d.tel.ReportWarning(report_driver_scroll, err, d.scrollCount+1)
		}
		d.tel.ReportDebug("scrolled", d.scrollCount+1)

		err = d.time.Sleep(ctx, d.policy.SettleDelay)
		if err != nil {
			return d.result(), err
		}
		err = d.waitIdle(ctx)
		if err != nil {
			return d.result(), err
		}

		d.scrollCount++

		if d.policy.BackoffEvery > 0 && d.scrollCount%d.policy.BackoffEvery == 0 {
			d.tel.ReportDebug("extended wait", d.scrollCount, d.policy.BackoffDelay.String())
			err = d.time.Sleep(ctx, d.policy.BackoffDelay)
			if err != nil {
				return d.result(), err
			}
		}
	}

	result := d.result()
	d.tel.ReportCount(report_driver_scrolls, int64(result.Scrolls))
	return result, nil
}

func (d *Driver) result() Result {
	return Result{
		Scrolls:      d.scrollCount,
		QuotaReached: d.quota.Full(),
	}
}
