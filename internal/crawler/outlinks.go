package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

/*
extractOutlinks reuses goquery the same way the teacher's
internal/extractor does, but only for the one thing this package needs:
every anchor href on the page, resolved against the page's own URL. The
teacher's content-scoring/markdown-conversion half of extraction has no
role here - a crawler worker never reads the body text, only discovers
where to go next.

Relative references are resolved with the standard library's
url.ResolveReference, which implements RFC 3986 reference resolution in
full (relative paths, "..", fragment-only links); urlutil.Resolve only
defaults a missing scheme/host and does not walk ".." segments, so it is
the wrong tool for this particular job.
*/

func extractOutlinks(pageURL url.URL, body []byte) []url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []url.URL
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := pageURL.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		key := resolved.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, *resolved)
	})

	return links
}
