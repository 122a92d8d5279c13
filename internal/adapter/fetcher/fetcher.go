package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"unirag/config"
	"unirag/internal/domain"
	"unirag/internal/port"
)

var _ port.LiveFetcher = (*Fetcher)(nil)

// Options bounds one Fetch call.
type Options struct {
	PerURLTimeout time.Duration
	CharBudget    int // total runes across every returned document
	Workers       int
	PDFLinkCap    int // 0 disables PDF enrichment
	PDFTimeout    time.Duration
	MaxBodyBytes  int64
	UserAgent     string
}

// OptionsFromConfig maps the live section of the configuration.
func OptionsFromConfig(cfg config.LiveConfig) Options {
	return Options{
		PerURLTimeout: cfg.PerURLTimeout,
		CharBudget:    cfg.CharBudget,
		Workers:       cfg.Workers,
		PDFLinkCap:    cfg.PDFLinkCap,
		PDFTimeout:    cfg.PDFTimeout,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		UserAgent:     cfg.UserAgent,
	}
}

// Fetcher scrapes pages into plain text.
type Fetcher struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func New(opts Options, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PerURLTimeout <= 0 {
		opts.PerURLTimeout = 8 * time.Second
	}
	if opts.PDFTimeout <= 0 {
		opts.PDFTimeout = opts.PerURLTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	return &Fetcher{client: client, opts: opts, logger: logger, now: time.Now}
}

// page is the outcome of one GET before budgeting.
type page struct {
	text     string
	pdfLinks []string
	err      error
}

// Fetch requests urls with at most Workers in flight and returns documents
// in url order. Failed URLs yield empty text. Once the character budget is
// spent, requests still in flight are cancelled and the remaining URLs are
// neither fetched nor returned.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) []domain.LiveDocument {
	remaining := f.opts.CharBudget
	if remaining <= 0 || ctx.Err() != nil {
		return nil
	}
	docs := make([]domain.LiveDocument, 0, len(urls))

	var pdfLinks []string
	seenPDF := make(map[string]struct{})

	f.fetchAll(ctx, urls, f.opts.PerURLTimeout, f.fetchPage, func(i int, p page) bool {
		doc := domain.LiveDocument{URL: urls[i], FetchedAt: f.now()}
		if p.err != nil {
			f.logger.Debug("live fetch failed", "url", urls[i], "error", p.err)
		} else {
			doc.Text, doc.Truncated = truncateRunes(p.text, remaining)
			remaining -= utf8.RuneCountInString(doc.Text)
		}
		docs = append(docs, doc)

		for _, link := range p.pdfLinks {
			if len(pdfLinks) >= f.opts.PDFLinkCap {
				break
			}
			if _, ok := seenPDF[link]; ok {
				continue
			}
			seenPDF[link] = struct{}{}
			pdfLinks = append(pdfLinks, link)
		}
		return remaining > 0 && ctx.Err() == nil
	})

	if remaining > 0 && len(pdfLinks) > 0 && ctx.Err() == nil {
		docs = append(docs, f.fetchPDFs(ctx, pdfLinks, remaining)...)
	}

	return docs
}

// fetchPDFs downloads discovered PDF links and spends what is left of the budget.
func (f *Fetcher) fetchPDFs(ctx context.Context, links []string, remaining int) []domain.LiveDocument {
	var docs []domain.LiveDocument
	f.fetchAll(ctx, links, f.opts.PDFTimeout, f.fetchPDF, func(i int, p page) bool {
		switch {
		case p.err != nil:
			f.logger.Debug("pdf fetch failed", "url", links[i], "error", p.err)
		case p.text != "":
			doc := domain.LiveDocument{URL: links[i], FetchedAt: f.now()}
			doc.Text, doc.Truncated = truncateRunes(p.text, remaining)
			remaining -= utf8.RuneCountInString(doc.Text)
			docs = append(docs, doc)
		}
		return remaining > 0
	})
	return docs
}

type fetchFunc func(ctx context.Context, rawURL string) page

// fetchAll runs fn for urls and hands each page to consume in url order.
// A request slot is released only after its page is consumed, so at most
// Workers urls are ahead of the consumer. When consume returns false the
// requests in flight are cancelled and no further url is requested.
func (f *Fetcher) fetchAll(ctx context.Context, urls []string, timeout time.Duration, fn fetchFunc, consume func(i int, p page) bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan page, len(urls))
	for i := range results {
		results[i] = make(chan page, 1)
	}
	slots := make(chan struct{}, f.opts.Workers)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		for i, u := range urls {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			if gctx.Err() != nil {
				return nil
			}
			g.Go(func() error {
				reqCtx, done := context.WithTimeout(gctx, timeout)
				defer done()
				results[i] <- fn(reqCtx, u)
				return nil
			})
		}
		return nil
	})

	for i := range urls {
		if !consume(i, <-results[i]) {
			break
		}
		<-slots
	}
	cancel()
	_ = g.Wait()
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: status %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	return resp, body, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, rawURL string) page {
	resp, body, err := f.get(ctx, rawURL)
	if err != nil {
		return page{err: err}
	}

	if isPDF(resp, rawURL) {
		text, err := ExtractPDFText(body)
		return page{text: text, err: err}
	}

	text, links, err := Sanitize(body, resp.Request.URL)
	if err != nil {
		return page{err: fmt.Errorf("%w: %v", domain.ErrFetch, err)}
	}
	if f.opts.PDFLinkCap <= 0 {
		links = nil
	}
	return page{text: text, pdfLinks: links}
}

func (f *Fetcher) fetchPDF(ctx context.Context, rawURL string) page {
	_, body, err := f.get(ctx, rawURL)
	if err != nil {
		return page{err: err}
	}
	text, err := ExtractPDFText(body)
	return page{text: text, err: err}
}

func isPDF(resp *http.Response, rawURL string) bool {
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/pdf") {
		return true
	}
	u, err := url.Parse(rawURL)
	return err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// truncateRunes cuts s to at most limit runes.
func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
