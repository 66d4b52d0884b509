package capture

import (
	"net/url"
	"strings"
)

// FeedEndpoint identifies the home feed recommendation API, responses are
// matched by substring so any query parameters after it are allowed.
const FeedEndpoint = "https://api.bilibili.com/x/web-interface/wbi/index/top/feed/rcmd?web_location"

// FeedSite is the domain whose pages produce feed responses.
const FeedSite = "bilibili.com"

// OnFeedSite reports whether target points at FeedSite or one of its subdomains.
func OnFeedSite(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	return host == FeedSite || strings.HasSuffix(host, "."+FeedSite)
}

// Filter decides which observed responses belong to the feed endpoint.
type Filter struct {
	Pattern string
}

func NewFilter(pattern string) Filter {
	if pattern == "" {
		pattern = FeedEndpoint
	}
	return Filter{Pattern: pattern}
}

func (f Filter) Accepts(responseUrl string) bool {
	return strings.Contains(responseUrl, f.Pattern)
}
