package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		PerURLTimeout: time.Second,
		CharBudget:    8000,
		Workers:       3,
		PDFLinkCap:    5,
		PDFTimeout:    time.Second,
		MaxBodyBytes:  1 << 20,
		UserAgent:     "unirag-test",
	}
}

func newFetcher(opts Options) *Fetcher {
	return New(opts, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>t</title><style>p{color:red}</style></head><body>%s</body></html>", body)
	}
}

func TestSanitize(t *testing.T) {
	body := []byte(`<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body><h1>Admissions</h1><p>Apply   before
June.</p><img src="x.png" alt="logo"><noscript>enable js</noscript>
<a href="/docs/brochure.PDF">Brochure</a><a href="notes.txt">Notes</a>
<a href="https://other.example/fees.pdf">Fees</a><a href="mailto:x@y.pdf">mail</a></body></html>`)

	base, _ := url.Parse("https://mzu.example/admissions/")
	text, links, err := Sanitize(body, base)
	require.NoError(t, err)

	assert.Equal(t, "Admissions Apply before June. Brochure Notes Fees mail", text)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "enable js")
	assert.Equal(t, []string{"https://mzu.example/docs/brochure.PDF", "https://other.example/fees.pdf"}, links)
}

func TestFetch_PreservesURLOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		htmlPage("<p>slow page</p>")(w, r)
	})
	mux.HandleFunc("/fast", htmlPage("<p>fast page</p>"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs := newFetcher(testOptions()).Fetch(context.Background(), []string{srv.URL + "/slow", srv.URL + "/fast"})
	require.Len(t, docs, 2)
	assert.Equal(t, srv.URL+"/slow", docs[0].URL)
	assert.Equal(t, "t slow page", docs[0].Text)
	assert.Equal(t, "t fast page", docs[1].Text)
	assert.False(t, docs[0].FetchedAt.IsZero())
}

func TestFetch_FailuresDoNotAbortBatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", htmlPage("<p>contact the registrar</p>"))
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/hang", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions()
	opts.PerURLTimeout = 100 * time.Millisecond

	urls := []string{
		"http://127.0.0.1:1/unreachable",
		srv.URL + "/missing",
		srv.URL + "/hang",
		srv.URL + "/ok",
	}
	docs := newFetcher(opts).Fetch(context.Background(), urls)

	require.Len(t, docs, 4)
	for i := 0; i < 3; i++ {
		assert.Empty(t, docs[i].Text, urls[i])
		assert.False(t, docs[i].Truncated)
	}
	assert.Equal(t, "t contact the registrar", docs[3].Text)
}

func TestFetch_BudgetNeverExceeded(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		htmlPage("<p>"+strings.Repeat("ü", 40)+"</p>")(w, r)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.CharBudget = 100
	opts.Workers = 1

	var urls []string
	for i := 0; i < 10; i++ {
		urls = append(urls, fmt.Sprintf("%s/p%d", srv.URL, i))
	}

	docs := newFetcher(opts).Fetch(context.Background(), urls)

	total := 0
	for _, d := range docs {
		total += utf8.RuneCountInString(d.Text)
	}
	assert.LessOrEqual(t, total, 100)
	require.Len(t, docs, 3, "each page is 42 runes, so the third exhausts the budget")
	assert.False(t, docs[0].Truncated)
	assert.True(t, docs[2].Truncated)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "remaining URLs must not be fetched")
}

func TestFetch_BudgetCancelsInFlight(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/full", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		htmlPage("<p>"+strings.Repeat("x", 200)+"</p>")(w, r)
	})
	mux.HandleFunc("/slow/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		htmlPage("<p>late</p>")(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions()
	opts.CharBudget = 100
	opts.Workers = 4
	opts.PerURLTimeout = 10 * time.Second

	urls := []string{srv.URL + "/full"}
	for i := 0; i < 9; i++ {
		urls = append(urls, fmt.Sprintf("%s/slow/%d", srv.URL, i))
	}

	start := time.Now()
	docs := newFetcher(opts).Fetch(context.Background(), urls)

	require.Len(t, docs, 1)
	assert.True(t, docs[0].Truncated)
	assert.Less(t, time.Since(start), 3*time.Second, "in-flight requests are cancelled once the budget is spent")
	assert.LessOrEqual(t, atomic.LoadInt32(&hits), int32(4), "no URL beyond the worker window is requested")
}

func TestFetch_ZeroBudget(t *testing.T) {
	opts := testOptions()
	opts.CharBudget = 0
	docs := newFetcher(opts).Fetch(context.Background(), []string{"http://127.0.0.1:1/"})
	assert.Empty(t, docs)
}

func TestFetch_PDFLinksDegradeGracefully(t *testing.T) {
	var pdfHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", htmlPage(`<p>home</p>
		<a href="/a.pdf">a</a><a href="/b.pdf">b</a><a href="/a.pdf">again</a><a href="/c.pdf">c</a>`))
	mux.HandleFunc("/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pdfHits, 1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 this is not a real pdf"))
	})
	mux.HandleFunc("/b.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pdfHits, 1)
		http.Error(w, "gone", http.StatusGone)
	})
	mux.HandleFunc("/c.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pdfHits, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions()
	opts.PDFLinkCap = 2

	docs := newFetcher(opts).Fetch(context.Background(), []string{srv.URL + "/"})
	require.Len(t, docs, 1, "broken PDFs add no documents")
	assert.Equal(t, "t home a b again c", docs[0].Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pdfHits), "PDF links are deduplicated and capped")
}

func TestFetch_PDFDisabled(t *testing.T) {
	var pdfHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", htmlPage(`<a href="/a.pdf">a</a>`))
	mux.HandleFunc("/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pdfHits, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions()
	opts.PDFLinkCap = 0
	newFetcher(opts).Fetch(context.Background(), []string{srv.URL + "/"})
	assert.Zero(t, atomic.LoadInt32(&pdfHits))
}

func TestFetch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs := newFetcher(testOptions()).Fetch(ctx, []string{"http://127.0.0.1:1/"})
	assert.Empty(t, docs)
}

func TestExtractPDFText_Invalid(t *testing.T) {
	_, err := ExtractPDFText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	s, cut := truncateRunes("héllo", 3)
	assert.Equal(t, "hél", s)
	assert.True(t, cut)

	s, cut = truncateRunes("héllo", 5)
	assert.Equal(t, "héllo", s)
	assert.False(t, cut)

	s, cut = truncateRunes("", 0)
	assert.Empty(t, s)
	assert.False(t, cut)
}
