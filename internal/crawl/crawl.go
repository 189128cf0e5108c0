// Package crawl fetches web pages breadth-first from seed URLs and feeds
// their visible text into the ingest pipeline. One Crawl call owns one
// frontier: a FIFO queue consumed by a single worker, so pages are
// processed in discovery order and the page budget is exact.
package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/queue"

	"github.com/reliefhq/relief/internal/log"
)

// ErrNoSeeds indicates the request contained no usable seed URL.
var ErrNoSeeds = errors.New("no valid seed URLs")

// Ingestor is the slice of the ingest pipeline the crawler needs.
type Ingestor interface {
	IngestText(ctx context.Context, text, sourceURI string) (int, error)
}

// Config carries crawler defaults from application configuration.
type Config struct {
	MaxPages       int
	AllowedDomains []string
	Timeout        time.Duration
	UserAgent      string
	Readability    bool
}

// Request describes one crawl. Zero-valued fields fall back to the
// crawler's configured defaults.
type Request struct {
	Seeds          []string
	AllowedDomains []string
	MaxPages       int
}

// Result reports what a crawl did. Visited lists fetched URLs in fetch
// order and never exceeds the page budget; PagesIndexed counts the pages
// whose text reached the index.
type Result struct {
	PagesIndexed int      `json:"pages_indexed"`
	Visited      []string `json:"visited"`
}

// Crawler runs breadth-first crawls against the ingest pipeline.
type Crawler struct {
	ingestor Ingestor
	cfg      Config
	logger   log.Logger
}

// New wires a Crawler. A nil logger falls back to slog.Default().
func New(ingestor Ingestor, cfg Config, logger log.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{ingestor: ingestor, cfg: cfg, logger: logger}
}

var collapseWhitespace = regexp.MustCompile(`\s+`)

// Crawl fetches pages breadth-first from req.Seeds until the frontier is
// empty or the page budget is spent. Fetch and parse failures are logged
// and skipped; only an empty seed list is an error.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*Result, error) {
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}
	allowed := req.AllowedDomains
	if allowed == nil {
		allowed = c.cfg.AllowedDomains
	}
	scope := newScope(allowed)

	seeds := make([]string, 0, len(req.Seeds))
	for _, s := range req.Seeds {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			c.logger.Warn("skipping invalid seed", "seed", s)
			continue
		}
		seeds = append(seeds, s)
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.cfg.UserAgent),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)

	// One consumer thread keeps the frontier strictly FIFO.
	frontier, err := queue.New(1, &queue.InMemoryQueueStorage{MaxSize: 100000})
	if err != nil {
		return nil, fmt.Errorf("creating frontier: %w", err)
	}

	// Callbacks run on the single queue consumer, so this state needs no
	// locking.
	res := &Result{}
	enqueued := map[string]bool{}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if !scope.allows(r.URL.Hostname()) {
			r.Abort()
			return
		}
		if len(res.Visited) >= maxPages {
			r.Abort()
			return
		}
		res.Visited = append(res.Visited, r.URL.String())
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		// Drop fragments so page.html and page.html#section dedup to one.
		u.Fragment = ""
		link = u.String()
		if enqueued[link] || !scope.allows(u.Hostname()) {
			return
		}
		enqueued[link] = true
		if err := frontier.AddURL(link); err != nil {
			c.logger.Debug("enqueue failed", "url", link, "error", err)
		}
	})

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		text := c.extractText(e, pageURL)
		if text == "" {
			return
		}
		if _, err := c.ingestor.IngestText(ctx, text, pageURL); err != nil {
			c.logger.Error("indexing page failed, skipping", "url", pageURL, "error", err)
			return
		}
		res.PagesIndexed++
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Debug("fetch failed, skipping", "url", r.Request.URL.String(), "error", err)
	})

	for _, s := range seeds {
		u, _ := url.Parse(s)
		u.Fragment = ""
		enqueued[u.String()] = true
		if err := frontier.AddURL(u.String()); err != nil {
			return nil, fmt.Errorf("enqueuing seed %q: %w", s, err)
		}
	}

	start := time.Now()
	if err := frontier.Run(collector); err != nil {
		return nil, fmt.Errorf("running crawl: %w", err)
	}
	collector.Wait()

	c.logger.Info("crawl finished",
		"seeds", len(seeds),
		"visited", len(res.Visited),
		"indexed", res.PagesIndexed,
		"elapsed", time.Since(start))
	return res, nil
}

// extractText returns the page's visible text, via readability extraction
// when enabled, otherwise by stripping non-content nodes from the DOM.
func (c *Crawler) extractText(e *colly.HTMLElement, pageURL string) string {
	if c.cfg.Readability {
		if u, err := url.Parse(pageURL); err == nil {
			article, err := readability.FromReader(strings.NewReader(string(e.Response.Body)), u)
			if err == nil && strings.TrimSpace(article.TextContent) != "" {
				return normalizeText(article.TextContent)
			}
			c.logger.Debug("readability extraction fell back to DOM text", "url", pageURL, "error", err)
		}
	}

	// Parse a private document: e.DOM is shared with the link handler,
	// so pruning it in place would be visible there.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(e.Response.Body))
	if err != nil {
		c.logger.Debug("parsing page failed, skipping", "url", pageURL, "error", err)
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return normalizeText(doc.Text())
}

func normalizeText(s string) string {
	return strings.TrimSpace(collapseWhitespace.ReplaceAllString(s, " "))
}

// scope decides which hosts a crawl may touch.
type scope struct {
	domains []string // lowercase; empty admits every host
}

func newScope(allowed []string) *scope {
	s := &scope{}
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			s.domains = append(s.domains, d)
		}
	}
	return s
}

// allows reports whether host matches an allowed domain exactly or as a
// subdomain. An empty allow-list admits every host.
func (s *scope) allows(host string) bool {
	if len(s.domains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range s.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
