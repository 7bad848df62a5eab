package crawler

import (
	"time"

	"github.com/PentesterFlow/scrape-characters/internal/logger"
	"github.com/PentesterFlow/scrape-characters/internal/metrics"
	"github.com/PentesterFlow/scrape-characters/internal/parser"
	"github.com/PentesterFlow/scrape-characters/internal/state"
)

// Option is a functional option for configuring the Crawler.
type Option func(*Crawler) error

// WithConfig replaces the configuration with a copy of config.
func WithConfig(config *Config) Option {
	return func(c *Crawler) error {
		c.config = config.Clone()
		return nil
	}
}

// WithTarget sets the seed URL.
func WithTarget(url string) Option {
	return func(c *Crawler) error {
		c.config.Target = url
		return nil
	}
}

// WithDelay sets the minimum time between fetch starts.
func WithDelay(delay time.Duration) Option {
	return func(c *Crawler) error {
		if delay < 0 {
			delay = 0
		}
		c.config.Delay = int(delay / time.Millisecond)
		return nil
	}
}

// WithMaxIterations sets the maximum number of frontier pops.
func WithMaxIterations(n int) Option {
	return func(c *Crawler) error {
		if n < 0 {
			n = 0
		}
		c.config.MaxIterations = n
		return nil
	}
}

// WithIgnoreHashes sets whether fragment-bearing links are rejected.
func WithIgnoreHashes(ignore bool) Option {
	return func(c *Crawler) error {
		c.config.IgnoreHashes = ignore
		return nil
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Crawler) error {
		c.config.Timeout = timeout
		return nil
	}
}

// WithUserAgent sets the user agent.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) error {
		c.config.UserAgent = ua
		return nil
	}
}

// WithRetries sets the number of retries for transient failures.
func WithRetries(n int) Option {
	return func(c *Crawler) error {
		c.config.Retries = n
		return nil
	}
}

// WithExcludePatterns adds URL patterns to exclude.
func WithExcludePatterns(patterns ...string) Option {
	return func(c *Crawler) error {
		c.config.ExcludePatterns = append(c.config.ExcludePatterns, patterns...)
		return nil
	}
}

// WithNormalization sets the text normalization form.
func WithNormalization(n parser.Normalization) Option {
	return func(c *Crawler) error {
		c.config.Normalization = string(n)
		return nil
	}
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) error {
		c.fetcher = f
		return nil
	}
}

// WithExtractor replaces the HTML extractor.
func WithExtractor(e parser.Extractor) Option {
	return func(c *Crawler) error {
		c.extractor = e
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Crawler) error {
		c.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) error {
		c.metrics = m
		return nil
	}
}

// WithObserver registers a callback invoked after every iteration.
func WithObserver(o Observer) Option {
	return func(c *Crawler) error {
		c.observer = o
		return nil
	}
}

// WithStore archives finished runs in s.
func WithStore(s state.Store) Option {
	return func(c *Crawler) error {
		c.store = s
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(c *Crawler) error {
		c.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(c *Crawler) error {
		c.config.Debug = debug
		return nil
	}
}
