package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	crawlerrors "github.com/PentesterFlow/scrape-characters/internal/errors"
	crawlhttp "github.com/PentesterFlow/scrape-characters/internal/http"
	"github.com/PentesterFlow/scrape-characters/internal/logger"
	"github.com/PentesterFlow/scrape-characters/internal/metrics"
	"github.com/PentesterFlow/scrape-characters/internal/parser"
	"github.com/PentesterFlow/scrape-characters/internal/queue"
	"github.com/PentesterFlow/scrape-characters/internal/ratelimit"
	"github.com/PentesterFlow/scrape-characters/internal/scope"
	"github.com/PentesterFlow/scrape-characters/internal/state"
)

// Crawler is the crawl orchestrator. A Crawler runs one crawl at a time.
type Crawler struct {
	config    *Config
	fetcher   Fetcher
	extractor parser.Extractor
	logger    *logger.Logger
	metrics   *metrics.Collector
	store     state.Store
	observer  Observer

	running atomic.Bool
}

// New creates a new crawler with the given options.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{
		config: DefaultConfig(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Validate config
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.logger == nil {
		c.logger = logger.New(logger.Config{
			Level:     logger.LevelFor(c.config.Verbose, c.config.Debug),
			Pretty:    true,
			Component: "crawler",
		})
	}

	if c.metrics == nil {
		c.metrics = metrics.New()
	}

	if c.extractor == nil {
		norm, _ := parser.ParseNormalization(c.config.Normalization)
		c.extractor = parser.NewHTMLParser(norm)
	}

	if c.fetcher == nil {
		c.fetcher = crawlhttp.NewClient(c.clientConfig())
	}

	return c, nil
}

func (c *Crawler) clientConfig() crawlhttp.ClientConfig {
	cfg := crawlhttp.DefaultClientConfig()
	cfg.Timeout = c.config.Timeout
	cfg.MaxBodyBytes = c.config.MaxBodyBytes
	cfg.Headers = c.config.CustomHeaders
	cfg.Retry.MaxRetries = c.config.Retries
	if c.config.UserAgent != "" {
		cfg.UserAgent = c.config.UserAgent
	}
	return cfg
}

// Config returns the crawler configuration.
func (c *Crawler) Config() *Config {
	return c.config
}

// Metrics returns the metrics collector.
func (c *Crawler) Metrics() *metrics.Collector {
	return c.metrics
}

// IsRunning reports whether a crawl is in progress.
func (c *Crawler) IsRunning() bool {
	return c.running.Load()
}

// Close releases the fetcher's resources.
func (c *Crawler) Close() {
	if closer, ok := c.fetcher.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Crawl runs the crawl loop until the iteration cap is reached, the frontier
// drains or ctx is cancelled. Page failures are recorded in the result; the
// only error returned is an INVALID_SEED rejection.
func (c *Crawler) Crawl(ctx context.Context) (*Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("crawler is already running")
	}
	defer c.running.Store(false)

	validator, err := scope.NewValidator(c.config.Target, scope.ScopeRules{
		IgnoreHashes:    c.config.IgnoreHashes,
		ExcludePatterns: c.config.ExcludePatterns,
	})
	if err != nil {
		return nil, err
	}

	seed := validator.Seed()
	record := state.NewRunRecord(seed, time.Now())
	st := state.New(seed, c.config.MaxIterations*8)
	pacer := ratelimit.NewPacer(c.config.DelayDuration())

	log := c.logger.WithURL(seed)
	log.Infof("Starting crawl (max %d iterations, delay %v)", c.config.MaxIterations, pacer.Delay())

	cancelled := false
	for st.Iterations() < c.config.MaxIterations {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if st.FrontierLen() == 0 {
			break
		}

		if err := pacer.Wait(ctx); err != nil {
			cancelled = true
			break
		}

		item, ok := st.Next()
		if !ok {
			break
		}
		c.visit(ctx, st, validator, item)
	}

	if cancelled {
		log.Warnf("Crawl cancelled after %d iterations", st.Iterations())
	}

	counts := st.Counts()
	c.metrics.SetFrontierDepth(counts.Frontier)

	result := &Result{
		RunID:      record.ID,
		Seed:       seed,
		StartedAt:  record.StartedAt,
		FinishedAt: time.Now(),
		Cancelled:  cancelled,
		Snapshot:   st.Snapshot(),
		Metrics:    c.metrics.Snapshot(),
	}

	stats := result.Metrics.Summary()
	stats["iterations"] = counts.Iterations
	stats["visited"] = counts.Visited
	stats["legit"] = counts.Legit
	stats["invalid"] = counts.Invalid
	stats["page_errors"] = counts.PageErrors
	stats["waited_ms"] = pacer.Stats().Waited.Milliseconds()
	log.StatsEvent(stats)

	if c.store != nil {
		c.archive(record, result)
	}

	return result, nil
}

// archive saves the run. Archive failures are logged and never fail the run.
func (c *Crawler) archive(record *state.RunRecord, result *Result) {
	record.FinishedAt = result.FinishedAt
	record.Cancelled = result.Cancelled
	record.Snapshot = result.Snapshot
	if data, err := json.Marshal(c.config); err == nil {
		record.Config = data
	}

	if err := c.store.Save(record); err != nil {
		c.logger.ErrorEvent(err, result.Seed, "archive")
		return
	}
	c.logger.Debugf("Archived run %s", record.ID)
}

// visit processes one frontier entry.
func (c *Crawler) visit(ctx context.Context, st *state.State, v *scope.Validator, item *queue.Item) {
	iteration := st.Iterations() + 1
	log := c.logger.WithURL(item.URL).WithIteration(iteration)

	st.MarkVisited(item.URL)
	c.metrics.RecordRequest()

	start := time.Now()
	page, err := c.fetcher.Fetch(ctx, item.URL)
	c.metrics.RecordResponseTime(time.Since(start))
	if page == nil && err == nil {
		err = crawlerrors.NewFetchError(crawlerrors.Unknown, item.URL, "fetch", "no page returned", nil)
	}
	if page != nil {
		if page.StatusCode != 0 {
			c.metrics.RecordStatusCode(page.StatusCode)
		}
		c.metrics.RecordBytes(int64(page.Bytes))
		c.metrics.RecordRetries(page.Attempts - 1)
	}

	if err != nil {
		st.IncIterations()
		if ctx.Err() != nil {
			log.Debugf("Fetch interrupted by cancellation")
		} else {
			c.recordFailure(st, item.URL, iteration, err)
		}
		c.notify(st, item.URL, err)
		return
	}

	if !sameOrigin(page.FinalURL, v.Origin()) {
		st.IncIterations()
		err := crawlerrors.NewFetchError(crawlerrors.Network, item.URL, "redirect",
			"redirected off origin to "+page.FinalURL, nil)
		c.recordFailure(st, item.URL, iteration, err)
		c.notify(st, item.URL, err)
		return
	}

	extraction, err := c.extractor.Extract(page.Body)
	if err != nil {
		st.IncIterations()
		c.recordFailure(st, item.URL, iteration, crawlerrors.NewParseError(item.URL, "extract", err))
		c.notify(st, item.URL, err)
		return
	}

	base := pageBase(page, item.URL, extraction.Base)
	newLinks := 0
	for _, raw := range extraction.Links {
		canonical, err := v.Validate(raw, base)
		if err != nil {
			reason := string(scope.ReasonOf(err))
			if st.AddInvalid(raw) {
				c.metrics.RecordRejection(reason)
			}
			log.LinkEvent(raw, "", reason)
			continue
		}
		if st.AddLegit(canonical, item.URL, item.Depth+1) {
			c.metrics.RecordLegitLink()
			newLinks++
		}
		log.LinkEvent(raw, canonical, "")
	}

	added := st.AddText(extraction.Text)
	c.metrics.RecordCharacters(added)
	c.metrics.RecordPageCrawled()
	st.IncIterations()

	log.PageEvent(item.URL, extraction.Title, iteration, newLinks, added, time.Since(start))
	c.notify(st, item.URL, nil)
}

func (c *Crawler) recordFailure(st *state.State, pageURL string, iteration int, err error) {
	fe := crawlerrors.Categorize(err, pageURL)
	st.RecordError(state.PageError{
		URL:        pageURL,
		Type:       fe.Type.String(),
		StatusCode: fe.StatusCode,
		Message:    fe.Message,
		Iteration:  iteration,
	})
	c.metrics.RecordError(fe.Type.String())
	c.logger.ErrorEvent(err, pageURL, "fetch")
}

func (c *Crawler) notify(st *state.State, pageURL string, err error) {
	counts := st.Counts()
	c.metrics.SetFrontierDepth(counts.Frontier)

	if c.observer == nil {
		return
	}
	c.observer(Progress{
		Iteration:     counts.Iterations,
		MaxIterations: c.config.MaxIterations,
		URL:           pageURL,
		Visited:       counts.Visited,
		Legit:         counts.Legit,
		Invalid:       counts.Invalid,
		Characters:    counts.Characters,
		Frontier:      counts.Frontier,
		Errors:        counts.PageErrors,
		Err:           err,
	})
}

// sameOrigin reports whether finalURL, the address a fetch ended at after
// redirects, is still on origin. An empty finalURL means no redirect.
func sameOrigin(finalURL string, origin scope.Origin) bool {
	if finalURL == "" {
		return true
	}
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return scope.OriginOf(u) == origin
}

// pageBase returns the URL links on a page resolve against: the final URL
// after redirects, adjusted by a <base href> when present.
func pageBase(page *crawlhttp.Page, requested, baseHref string) *url.URL {
	raw := page.FinalURL
	if raw == "" {
		raw = requested
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	if baseHref != "" {
		if ref, err := url.Parse(baseHref); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base
}
