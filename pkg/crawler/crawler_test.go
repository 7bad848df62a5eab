package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crawlerrors "github.com/PentesterFlow/scrape-characters/internal/errors"
	crawlhttp "github.com/PentesterFlow/scrape-characters/internal/http"
	"github.com/PentesterFlow/scrape-characters/internal/logger"
	"github.com/PentesterFlow/scrape-characters/internal/scope"
	"github.com/PentesterFlow/scrape-characters/internal/state"
)

const seed = "https://example.com/"

// fakeSite serves pages from memory.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	final   map[string]string
	fetched []string
	onFetch func(url string)
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{
		pages: pages,
		errs:  make(map[string]error),
		final: make(map[string]string),
	}
}

func (f *fakeSite) Fetch(ctx context.Context, url string) (*crawlhttp.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, url)
	onFetch := f.onFetch
	f.mu.Unlock()

	if onFetch != nil {
		onFetch(url)
	}

	if err, ok := f.errs[url]; ok {
		return &crawlhttp.Page{URL: url}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return &crawlhttp.Page{URL: url, StatusCode: 404}, crawlerrors.NewStatusError(url, 404, "Not Found")
	}

	finalURL := url
	if f.final[url] != "" {
		finalURL = f.final[url]
	}
	return &crawlhttp.Page{
		URL:         url,
		FinalURL:    finalURL,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        body,
		Bytes:       len(body),
		Attempts:    1,
	}, nil
}

func (f *fakeSite) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func page(text string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>t</title></head><body><p>")
	b.WriteString(text)
	b.WriteString("</p>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s"></a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestCrawler(t *testing.T, site Fetcher, opts ...Option) *Crawler {
	t.Helper()
	base := []Option{
		WithTarget(seed),
		WithDelay(0),
		WithFetcher(site),
		WithLogger(logger.Nop()),
	}
	c, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func runeSet(s string) []rune {
	set := map[rune]struct{}{}
	for _, r := range s {
		set[r] = struct{}{}
	}
	out := make([]rune, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// Scenarios
// =============================================================================

func mixedAnchorSite() *fakeSite {
	return newFakeSite(map[string]string{
		seed:       page("Hi", "/a", "#top", "https://other.com/x", "mailto:a@b.c", "/a#frag", "/b"),
		seed + "a": page("ab", "/", "b"),
		seed + "b": page("bé"),
	})
}

func TestCrawl_MixedAnchors_IgnoreHashes(t *testing.T) {
	site := mixedAnchorSite()
	c := newTestCrawler(t, site, WithIgnoreHashes(true))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	snap := result.Snapshot
	assert.Equal(t, 3, snap.Iterations)
	assert.Equal(t, []string{seed, seed + "a", seed + "b"}, snap.Legit)
	assert.Equal(t, []string{"#top", "/a#frag", "https://other.com/x", "mailto:a@b.c"}, snap.Invalid)
	assert.Equal(t, []string{seed, seed + "a", seed + "b"}, snap.Visited)
	assert.Equal(t, []string{seed, seed + "a", seed + "b"}, site.Fetched(), "frontier should be FIFO")
	if diff := cmp.Diff(runeSet("Hiabbé"), snap.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, result.HasErrors())
	assert.False(t, result.Cancelled)
}

func TestCrawl_MixedAnchors_KeepHashes(t *testing.T) {
	c := newTestCrawler(t, mixedAnchorSite(), WithIgnoreHashes(false))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	snap := result.Snapshot
	assert.Equal(t, []string{seed, seed + "a", seed + "b"}, snap.Legit)
	assert.Equal(t, []string{"https://other.com/x", "mailto:a@b.c"}, snap.Invalid)
	assert.Equal(t, 3, snap.Iterations)
}

func TestCrawl_MaxIterationsZero(t *testing.T) {
	site := mixedAnchorSite()
	c := newTestCrawler(t, site, WithMaxIterations(0))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Empty(t, site.Fetched())
	assert.Equal(t, 0, result.Snapshot.Iterations)
	assert.Equal(t, []string{seed}, result.Snapshot.Legit)
	assert.Empty(t, result.Snapshot.Visited)
	assert.Empty(t, result.Snapshot.Characters)
}

func TestCrawl_MaxIterationsCap(t *testing.T) {
	site := mixedAnchorSite()
	c := newTestCrawler(t, site, WithMaxIterations(2))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Snapshot.Iterations)
	assert.Len(t, site.Fetched(), 2)
	assert.Contains(t, result.Snapshot.Legit, seed+"b", "discovered links stay legit even when unvisited")
}

func TestCrawl_EmptyFrontier(t *testing.T) {
	site := newFakeSite(map[string]string{seed: page("alone")})
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Snapshot.Iterations)
	assert.Equal(t, []string{seed}, result.Snapshot.Visited)
	assert.False(t, result.Cancelled)
}

func TestCrawl_SeedServerError(t *testing.T) {
	site := newFakeSite(nil)
	site.errs[seed] = crawlerrors.NewStatusError(seed, 500, "Internal Server Error")
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err, "page failures are not fatal")

	snap := result.Snapshot
	assert.Equal(t, 1, snap.Iterations)
	assert.Equal(t, []string{seed}, snap.Visited)
	assert.Equal(t, []string{seed}, snap.Legit)
	assert.Empty(t, snap.Characters)
	require.Len(t, snap.PageErrors, 1)
	assert.Equal(t, "status", snap.PageErrors[0].Type)
	assert.Equal(t, 500, snap.PageErrors[0].StatusCode)
	assert.Equal(t, 1, snap.PageErrors[0].Iteration)
	assert.True(t, result.HasErrors())
}

func TestCrawl_FailedPageDoesNotStopCrawl(t *testing.T) {
	site := newFakeSite(map[string]string{
		seed:        page("x", "/missing", "/ok"),
		seed + "ok": page("y"),
	})
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Snapshot.Iterations)
	assert.Equal(t, []string{seed, seed + "missing", seed + "ok"}, result.Snapshot.Visited)
	require.Len(t, result.Snapshot.PageErrors, 1)
	assert.Equal(t, seed+"missing", result.Snapshot.PageErrors[0].URL)
}

func TestCrawl_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := mixedAnchorSite()
	site.onFetch = func(url string) {
		if url == seed+"a" {
			cancel()
		}
	}
	c := newTestCrawler(t, site)

	result, err := c.Crawl(ctx)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, 2, result.Snapshot.Iterations)
	assert.Equal(t, []string{seed, seed + "a"}, result.Snapshot.Visited)
	assert.Contains(t, result.Snapshot.Legit, seed+"b")
	assert.NotEmpty(t, result.Snapshot.Characters, "partial state is reported")
}

func TestCrawl_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newTestCrawler(t, mixedAnchorSite(), WithDelay(time.Hour))
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	result, err := c.Crawl(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, result.Snapshot.Iterations)
}

func TestCrawl_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	site := mixedAnchorSite()
	c := newTestCrawler(t, site)

	result, err := c.Crawl(ctx)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Empty(t, site.Fetched())
	assert.Equal(t, []string{seed}, result.Snapshot.Legit)
}

func TestCrawl_InvalidSeed(t *testing.T) {
	for _, target := range []string{"", "ftp://example.com/", "not a url", "/relative"} {
		t.Run(target, func(t *testing.T) {
			c, err := New(WithTarget(target), WithLogger(logger.Nop()), WithFetcher(newFakeSite(nil)))
			require.NoError(t, err)

			result, err := c.Crawl(context.Background())
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, scope.ReasonInvalidSeed, scope.ReasonOf(err))
		})
	}
}

func TestCrawl_RelativeLinksResolveAgainstPage(t *testing.T) {
	site := newFakeSite(map[string]string{
		seed:                page("", "/docs/"),
		seed + "docs/":      page("", "guide", "../about"),
		seed + "docs/guide": page(""),
		seed + "about":      page(""),
	})
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{seed, seed + "about", seed + "docs/", seed + "docs/guide"}, result.Snapshot.Legit)
	assert.Empty(t, result.Snapshot.Invalid)
}

func TestCrawl_BaseHrefAndRedirect(t *testing.T) {
	site := newFakeSite(map[string]string{
		seed:         `<html><head><base href="/static/"></head><body><a href="x">x</a></body></html>`,
		seed + "old": page(""),
	})
	site.pages[seed] = strings.Replace(site.pages[seed], "</body>", `<a href="/old">o</a></body>`, 1)
	site.final[seed+"old"] = seed + "new/"
	site.pages[seed+"old"] = page("", "here")
	site.pages[seed+"static/x"] = page("")
	site.pages[seed+"new/here"] = page("")

	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Snapshot.Legit, seed+"static/x")
	assert.Contains(t, result.Snapshot.Legit, seed+"new/here", "links resolve against the final URL")
	assert.Empty(t, result.Snapshot.PageErrors)
}

func TestCrawl_RedirectOffOrigin(t *testing.T) {
	site := newFakeSite(map[string]string{
		seed:        page("home", "/go"),
		seed + "go": page("ΩΩΩ foreign", "/elsewhere"),
	})
	site.final[seed+"go"] = "https://other.com/landing"

	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	snap := result.Snapshot
	assert.Equal(t, 2, snap.Iterations)
	assert.Equal(t, []string{seed, seed + "go"}, snap.Legit)
	assert.Equal(t, runeSet("home"), snap.Characters)
	require.Len(t, snap.PageErrors, 1)
	assert.Equal(t, seed+"go", snap.PageErrors[0].URL)
	assert.Equal(t, "network", snap.PageErrors[0].Type)
	assert.Contains(t, snap.PageErrors[0].Message, "https://other.com/landing")
}

func TestSameOrigin(t *testing.T) {
	v, err := scope.NewValidator("http://example.com/", scope.ScopeRules{})
	require.NoError(t, err)

	tests := []struct {
		final string
		want  bool
	}{
		{"", true},
		{"http://example.com/next", true},
		{"http://EXAMPLE.com:80/next", true},
		{"https://example.com/next", false},
		{"http://example.com:8080/", false},
		{"http://other.com/", false},
		{"http://[::1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sameOrigin(tt.final, v.Origin()), "sameOrigin(%q)", tt.final)
	}
}

func TestCrawl_ExcludePatterns(t *testing.T) {
	site := newFakeSite(map[string]string{
		seed:       page("", "/a", "/logout", "/admin/users"),
		seed + "a": page(""),
	})
	c := newTestCrawler(t, site, WithExcludePatterns("/logout$", "/admin/"))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{seed, seed + "a"}, result.Snapshot.Legit)
	assert.Equal(t, []string{"/admin/users", "/logout"}, result.Snapshot.Invalid)
}

func TestCrawl_RateLimit(t *testing.T) {
	delay := 100 * time.Millisecond
	c := newTestCrawler(t, mixedAnchorSite(), WithDelay(delay))

	start := time.Now()
	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, result.Snapshot.Iterations)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay-10*time.Millisecond)
}

func TestCrawl_Archive(t *testing.T) {
	store, err := state.NewBoltStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	c := newTestCrawler(t, mixedAnchorSite(), WithStore(store))

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	record, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, result.RunID, record.ID)
	assert.Equal(t, seed, record.Seed)
	assert.Equal(t, result.Snapshot.Legit, record.Snapshot.Legit)
	assert.NotEmpty(t, record.Config)
	assert.False(t, record.FinishedAt.Before(record.StartedAt))
}

func TestCrawl_Metrics(t *testing.T) {
	site := mixedAnchorSite()
	site.errs[seed+"b"] = crawlerrors.NewStatusError(seed+"b", 503, "Service Unavailable")
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	m := result.Metrics
	require.NotNil(t, m)
	assert.EqualValues(t, 3, m.RequestsTotal)
	assert.EqualValues(t, 2, m.PagesCrawled)
	assert.EqualValues(t, 1, m.ErrorsTotal)
	assert.EqualValues(t, 1, m.ErrorCounts["status"])
	assert.EqualValues(t, 4, m.InvalidLinks)
	assert.EqualValues(t, 1, m.RejectionCounts["CROSS_ORIGIN"])
	assert.EqualValues(t, 2, m.RejectionCounts["HAS_FRAGMENT"])
}

func TestCrawl_Report(t *testing.T) {
	c := newTestCrawler(t, mixedAnchorSite())

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	report := result.Report(true)
	assert.Equal(t, seed, report.Seed)
	assert.Equal(t, 3, report.Stats.Legit)
	assert.Equal(t, 4, report.Stats.Invalid)
	assert.NotEmpty(t, report.CodePoints)
	assert.Equal(t, "completed", report.Status())
}

// =============================================================================
// Properties
// =============================================================================

// gridSite links every page to its next three neighbours plus a few links
// that must be rejected.
func gridSite(n int) *fakeSite {
	pages := make(map[string]string, n)
	for i := 0; i < n; i++ {
		links := []string{
			fmt.Sprintf("/p%d", (i+1)%n),
			fmt.Sprintf("p%d", (i+2)%n),
			fmt.Sprintf("https://example.com/p%d", (i+3)%n),
			fmt.Sprintf("#s%d", i),
			fmt.Sprintf("https://mirror%d.example.com/", i%3),
			"javascript:void(0)",
		}
		pages[fmt.Sprintf("%sp%d", seed, i)] = page(fmt.Sprintf("page %d ünï %c", i, 'A'+rune(i)), links...)
	}
	pages[seed] = page("root", "/p0")
	return newFakeSite(pages)
}

func TestCrawl_Properties(t *testing.T) {
	for _, max := range []int{0, 1, 5, 12, 100} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			var progress []Progress
			c := newTestCrawler(t, gridSite(20),
				WithMaxIterations(max),
				WithObserver(func(p Progress) { progress = append(progress, p) }),
			)

			result, err := c.Crawl(context.Background())
			require.NoError(t, err)
			snap := result.Snapshot

			// Termination within the cap.
			assert.LessOrEqual(t, snap.Iterations, max)
			assert.Len(t, progress, snap.Iterations)

			// Seed is always legit; visited is a subset of legit.
			legit := make(map[string]bool, len(snap.Legit))
			for _, l := range snap.Legit {
				legit[l] = true
				assert.True(t, strings.HasPrefix(l, seed), "legit link %q escapes the origin", l)
			}
			assert.True(t, legit[seed])
			for _, v := range snap.Visited {
				assert.True(t, legit[v], "visited %q is not legit", v)
			}

			// Legit and invalid are disjoint.
			for _, inv := range snap.Invalid {
				assert.False(t, legit[inv], "%q is both legit and invalid", inv)
			}

			// Monotonic growth.
			for i := 1; i < len(progress); i++ {
				prev, cur := progress[i-1], progress[i]
				assert.Equal(t, prev.Iteration+1, cur.Iteration)
				assert.GreaterOrEqual(t, cur.Visited, prev.Visited)
				assert.GreaterOrEqual(t, cur.Legit, prev.Legit)
				assert.GreaterOrEqual(t, cur.Invalid, prev.Invalid)
				assert.GreaterOrEqual(t, cur.Characters, prev.Characters)
			}
		})
	}
}

func TestCrawl_NoRefetch(t *testing.T) {
	site := gridSite(6)
	c := newTestCrawler(t, site)

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	seen := map[string]int{}
	for _, u := range site.Fetched() {
		seen[u]++
		assert.Equal(t, 1, seen[u], "%q fetched twice", u)
	}
	assert.Equal(t, 7, result.Snapshot.Iterations)
	assert.Equal(t, 7, len(result.Snapshot.Visited))
}

// =============================================================================
// End to end
// =============================================================================

func TestCrawl_HTTPServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page("Hello", "/about", "/data.json", "/gone", "https://example.org/"))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("Zürich", "/"))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"a":1}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := New(
		WithTarget(server.URL),
		WithDelay(0),
		WithTimeout(5*time.Second),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	snap := result.Snapshot
	root := server.URL + "/"
	assert.Equal(t, root, snap.Seed)
	assert.Equal(t, 4, snap.Iterations)
	assert.Equal(t, []string{root, root + "about", root + "data.json", root + "gone"}, snap.Legit)
	assert.Equal(t, []string{"https://example.org/"}, snap.Invalid)
	if diff := cmp.Diff(runeSet("HelloZürich"), snap.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}

	types := map[string]string{}
	for _, pe := range snap.PageErrors {
		types[pe.URL] = pe.Type
	}
	assert.Equal(t, map[string]string{
		root + "data.json": "content_type",
		root + "gone":      "status",
	}, types)
}

func TestCrawl_HTTPServer_RedirectOffOrigin(t *testing.T) {
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("ΩΩΩ foreign", "/x"))
	}))
	defer foreign.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("home", "/go"))
	})
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, foreign.URL+"/", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := New(
		WithTarget(server.URL),
		WithDelay(0),
		WithTimeout(5*time.Second),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Crawl(context.Background())
	require.NoError(t, err)

	snap := result.Snapshot
	root := server.URL + "/"
	assert.Equal(t, 2, snap.Iterations)
	assert.Equal(t, []string{root, root + "go"}, snap.Legit)
	assert.Empty(t, snap.Invalid)
	if diff := cmp.Diff(runeSet("home"), snap.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, snap.PageErrors, 1)
	assert.Equal(t, root+"go", snap.PageErrors[0].URL)
	assert.Equal(t, "network", snap.PageErrors[0].Type)
}
