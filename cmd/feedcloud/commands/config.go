package commands

import (
	"feedcloud/internal/capture"
	"feedcloud/internal/pipeline"
	"feedcloud/internal/scroll"
	"feedcloud/internal/tags"
	"feedcloud/lib/configutil"
	"feedcloud/lib/restyutil"
	"feedcloud/lib/serviceutil"
	"feedcloud/lib/telemetry"
	"time"
)

type CaptureConfig struct {
	// a substring every captured response url must contain
	Endpoint    string `json:"endpoint"`
	MaxCaptures int    `json:"max_captures"`
}

type ScrollConfig struct {
	MaxScrolls         int     `json:"max_scrolls"`
	InitialSeconds     float64 `json:"initial_seconds"`
	SettleSeconds      float64 `json:"settle_seconds"`
	IdleTimeoutSeconds float64 `json:"idle_timeout_seconds"`
	// every n scrolls the driver waits an extra backoff_seconds
	BackoffEvery   int     `json:"backoff_every"`
	BackoffSeconds float64 `json:"backoff_seconds"`
}

type FetchConfig struct {
	Referer          string  `json:"referer"`
	UserAgent        string  `json:"user_agent"`
	DelaySeconds     float64 `json:"delay_seconds"`
	TimeoutSeconds   float64 `json:"timeout_seconds"`
	BypassCloudflare bool    `json:"bypass_cloudflare"`
	// when set (and debug logging is on) every request and response is written here
	DumpDir string `json:"dump_dir"`
}

type OutputConfig struct {
	Dir  string `json:"dir"`
	Name string `json:"name"`
	Ext  string `json:"ext"`
}

type Config struct {
	TargetUrl string `json:"target_url"`
	// the DevTools endpoint of an already running browser, a port or a
	// ws:// or http:// url
	ControlUrl string `json:"control_url"`
	Debug      bool   `json:"debug"`
	// "dict" for dictionary segmentation, "fields" to split on whitespace
	Segmenter string        `json:"segmenter"`
	Capture   CaptureConfig `json:"capture"`
	Scroll    ScrollConfig  `json:"scroll"`
	Fetch     FetchConfig   `json:"fetch"`
	Output    OutputConfig  `json:"output"`
	Archive   string        `json:"archive"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func defaultConfig() Config {
	policy := scroll.DefaultPolicy()
	return Config{
		TargetUrl:  "https://www.bilibili.com/",
		ControlUrl: "9222",
		Segmenter:  "dict",
		Capture: CaptureConfig{
			Endpoint:    capture.FeedEndpoint,
			MaxCaptures: capture.DefaultMaxCaptures,
		},
		Scroll: ScrollConfig{
			MaxScrolls:         policy.MaxScrolls,
			InitialSeconds:     policy.InitialDelay.Seconds(),
			SettleSeconds:      policy.SettleDelay.Seconds(),
			IdleTimeoutSeconds: policy.IdleTimeout.Seconds(),
			BackoffEvery:       policy.BackoffEvery,
			BackoffSeconds:     policy.BackoffDelay.Seconds(),
		},
		Fetch: FetchConfig{
			Referer:        tags.DefaultReferer,
			UserAgent:      tags.DefaultUserAgent,
			DelaySeconds:   tags.DefaultDelay.Seconds(),
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			Dir: "picture",
			Ext: ".txt",
		},
	}
}

func readConfig() Config {
	cfg, err := configutil.ReadConfigOr(*configPath, defaultConfig())
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Debug {
		telemetry.InitSlog(true)
	}
	if *dbPath != "" {
		cfg.Archive = *dbPath
	}
	return cfg
}

func (c Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Capture: capture.Options{
			Filter:      capture.NewFilter(c.Capture.Endpoint),
			MaxCaptures: c.Capture.MaxCaptures,
		},
		Scroll: scroll.Policy{
			MaxScrolls:   c.Scroll.MaxScrolls,
			InitialDelay: seconds(c.Scroll.InitialSeconds),
			SettleDelay:  seconds(c.Scroll.SettleSeconds),
			IdleTimeout:  seconds(c.Scroll.IdleTimeoutSeconds),
			BackoffEvery: c.Scroll.BackoffEvery,
			BackoffDelay: seconds(c.Scroll.BackoffSeconds),
		},
	}
}

func (c Config) fetchOptions() tags.Options {
	opts := tags.Options{
		Referer:          c.Fetch.Referer,
		UserAgent:        c.Fetch.UserAgent,
		Delay:            seconds(c.Fetch.DelaySeconds),
		Timeout:          seconds(c.Fetch.TimeoutSeconds),
		BypassCloudflare: c.Fetch.BypassCloudflare,
	}
	if c.Fetch.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(c.Fetch.DumpDir)
		if err != nil {
			serviceutil.Fatal("failed to create request dump directory", err)
		}
		opts.InstrumentOutput = output
	}
	return opts
}
