// Package browser attaches to an already running browser over the DevTools
// protocol, launching and closing the browser itself is left to the user.
package browser

import (
	"context"
	"encoding/base64"
	"feedcloud/internal/capture"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	scrollToBottomJs = `() => window.scrollTo(0, document.body.scrollHeight)`
	// idleQuiet is how long no requests may be in flight before the page counts as idle.
	idleQuiet   = 500 * time.Millisecond
	eventBuffer = 32
)

// Page is a single tab opened by feedcloud in a remote browser.
type Page struct {
	browser *rod.Browser
	page    *rod.Page
}

// Connect attaches to the browser listening at controlUrl, which may be a
// websocket debugger url, an http url or just a port (ex. "9222").
func Connect(ctx context.Context, controlUrl string) (*Page, error) {
	wsUrl, err := launcher.ResolveURL(controlUrl)
	if err != nil {
		return nil, fmt.Errorf("resolve devtools url %q: %w", controlUrl, err)
	}

	browser := rod.New().ControlURL(wsUrl).Context(ctx)
	err = browser.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	err = proto.NetworkEnable{}.Call(page)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("enable network domain: %w", err)
	}

	return &Page{browser: browser, page: page}, nil
}

// Close closes the tab opened by Connect, the browser keeps running.
func (p *Page) Close() error {
	return p.page.Close()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	err := page.Navigate(url)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(scrollToBottomJs)
	return err
}

func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.page.Context(ctx).WaitRequestIdle(idleQuiet, nil, nil, nil)()
	return ctx.Err()
}

func (p *Page) bodyReader(id proto.NetworkRequestID) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(p.page.Context(ctx))
		if err != nil {
			return "", fmt.Errorf("get response body: %w", err)
		}
		if !res.Base64Encoded {
			return res.Body, nil
		}
		decoded, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return "", fmt.Errorf("decode response body: %w", err)
		}
		return string(decoded), nil
	}
}

// Subscribe forwards every response the page finishes loading, the body is
// read lazily since it is only available once loading has finished.
func (p *Page) Subscribe(ctx context.Context) (<-chan capture.ObservedResponse, func()) {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan capture.ObservedResponse, eventBuffer)

	// only touched from the event loop goroutine
	pending := map[proto.NetworkRequestID]string{}

	wait := p.page.Context(ctx).EachEvent(
		func(e *proto.NetworkResponseReceived) {
			pending[e.RequestID] = e.Response.URL
		},
		func(e *proto.NetworkLoadingFailed) {
			delete(pending, e.RequestID)
		},
		func(e *proto.NetworkLoadingFinished) {
			url, ok := pending[e.RequestID]
			if !ok {
				return
			}
			delete(pending, e.RequestID)

			select {
			case events <- capture.ObservedResponse{URL: url, ReadBody: p.bodyReader(e.RequestID)}:
			case <-ctx.Done():
			}
		},
	)
	go func() {
		defer close(events)
		wait()
	}()

	return events, cancel
}
