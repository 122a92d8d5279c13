package fetcher

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Sanitize strips script, style, image and noscript content from an HTML
// page and returns its visible text with whitespace runs collapsed to single
// spaces, plus the absolute URLs of links ending in .pdf in document order.
func Sanitize(body []byte, base *url.URL) (string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}

	doc.Find("script, style, img, noscript").Remove()

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		links = append(links, ref.String())
	})

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &sb)
	}

	return CollapseWhitespace(sb.String()), links, nil
}

// collectText appends every text node separated by a space, so adjacent
// block elements do not run together.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
