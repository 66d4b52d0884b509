package browser

import (
	"context"
	devenv "feedcloud/dev/env"
	"feedcloud/internal/capture"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// these tests need a browser started with --remote-debugging-port, either
// run `go run ./dev -browser` or point FEEDCLOUD_DEVTOOLS at one (ex.
// FEEDCLOUD_DEVTOOLS=9222).
func connectForTesting(t *testing.T) *Page {
	t.Helper()
	controlUrl, err := devenv.DevtoolsUrl()
	if err != nil {
		t.Skip(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	page, err := Connect(ctx, controlUrl)
	require.NoError(t, err)
	t.Cleanup(func() { page.Close() })
	return page
}

func TestSubscribeObservesFetches(t *testing.T) {
	page := connectForTesting(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/feed" {
			w.Header().Set("content-type", "application/json")
			w.Write([]byte(`{"data":{"item":[{"uri":"http://x/1"}]}}`))
			return
		}
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(`<html><body style="height:5000px"><script>fetch("/feed?page=1")</script></body></html>`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	events, unsubscribe := page.Subscribe(ctx)
	defer unsubscribe()

	require.NoError(t, page.Navigate(ctx, server.URL))
	require.NoError(t, page.ScrollToBottom(ctx))

	filter := capture.NewFilter("/feed?page=")
	for {
		select {
		case <-ctx.Done():
			t.Fatal("feed response was never observed")
		case res := <-events:
			if !filter.Accepts(res.URL) {
				continue
			}
			body, err := res.ReadBody(ctx)
			require.NoError(t, err)
			require.Contains(t, body, "http://x/1")
			return
		}
	}
}
