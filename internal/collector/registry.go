package collector

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/donaldgifford/discount-notifier/internal/config"
)

// Source pairs a collector with the direct transport suited to its kind.
type Source struct {
	Config    config.SourceConfig
	Collector Collector
	Direct    Transport
}

// Key returns the CLI selector for the source.
func (s *Source) Key() string { return s.Config.Key }

// Build constructs the collector and direct transport for a source. HTML
// sources use colly; JSON endpoints use a retrying client behind a rate
// limiter.
func Build(src config.SourceConfig, hc config.HTTPConfig, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("retailer", src.Name)

	ua := src.UserAgent
	if ua == "" {
		ua = hc.UserAgent
	}

	s := &Source{Config: src}
	switch src.Kind {
	case config.KindJSONLD:
		s.Collector = NewJSONLDCollector(src.Name, src.URL,
			WithJSONLDPages(src.StartPage, src.MaxPages),
			WithJSONLDCurrency(src.Currency),
		)
		s.Direct = NewHTMLTransport(
			WithHTMLUserAgent(ua),
			WithHTMLTimeout(hc.Timeout),
			WithHTMLDelay(delayFor(hc.RatePerSecond)),
			WithHTMLLogger(log),
		)
	case config.KindJSONAPI:
		s.Collector = NewJSONAPICollector(src.Name, src.URL, src.Paths,
			WithJSONAPIPages(src.StartPage, src.MaxPages),
			WithJSONAPIBaseURL(src.BaseURL),
			WithJSONAPICurrency(src.Currency),
		)
		s.Direct = NewAPITransport(
			WithAPIRetry(hc.RetryMax, hc.RetryWaitMin, hc.RetryWaitMax),
			WithAPITimeout(hc.Timeout),
			WithAPIRateLimiter(NewRateLimiter(hc.RatePerSecond, hc.Burst)),
			WithAPIUserAgent(ua),
			WithAPILogger(log),
		)
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
	}
	return s, nil
}

// BuildAll constructs every configured source, keeping only the keys in only
// when it is non-empty.
func BuildAll(cfg *config.Config, only []string, log *slog.Logger) ([]*Source, error) {
	want := make(map[string]bool, len(only))
	for _, k := range only {
		want[k] = true
	}

	var sources []*Source
	for _, src := range cfg.Sources {
		if len(only) > 0 && !want[src.Key] {
			continue
		}
		s, err := Build(src, cfg.HTTP, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
		want[src.Key] = false
	}

	var unknown []string
	for k, pending := range want {
		if pending {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("unknown source key(s): %s", strings.Join(unknown, ", "))
	}
	return sources, nil
}

func delayFor(perSecond float64) time.Duration {
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / perSecond)
}
