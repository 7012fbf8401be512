package textextract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

/*
Responsibilities

- Turn raw fetched HTML bytes into the plain text the indexer embeds and
  stores, plus whatever the document itself tells us about its title and
  language
- Adapted from the teacher's sanitizer/extractor DOM-walking idiom, but
  flattened to a single pass: the indexer never needs a reconstructed DOM,
  only the text a search index would want to rank on

skippedTags never contribute to the extracted body: navigation chrome,
scripts and styles are noise for ranking and embedding alike.
*/

var skippedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"nav":      {},
	"header":   {},
	"footer":   {},
	"aside":    {},
	"template": {},
}

// Document is the plain-text projection of a fetched page.
type Document struct {
	Title string
	Lang  string
	Text  string
}

// Extract parses htmlBytes and walks the body text nodes, skipping
// chrome elements, to produce a Document. Document.Lang is only ever
// populated from an explicit <html lang="..."> attribute; Extract does
// not call DetectLanguage, the indexer applies it when Lang is empty.
func Extract(htmlBytes []byte) (Document, *TextExtractError) {
	if len(bytes.TrimSpace(htmlBytes)) == 0 {
		return Document{}, &TextExtractError{Message: "input is empty", Cause: ErrCauseEmptyDocument}
	}

	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return Document{}, &TextExtractError{Message: err.Error(), Cause: ErrCauseUnparseableHTML}
	}

	var out Document
	var body strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedTags[n.Data]; skip {
				return
			}
			if n.Data == "html" {
				for _, a := range n.Attr {
					if a.Key == "lang" {
						out.Lang = strings.TrimSpace(a.Val)
					}
				}
			}
			if n.Data == "title" && out.Title == "" {
				out.Title = strings.TrimSpace(textOf(n))
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				body.WriteString(text)
				body.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out.Text = strings.TrimSpace(body.String())
	if out.Text == "" && out.Title == "" {
		return Document{}, &TextExtractError{Message: "no extractable text content", Cause: ErrCauseEmptyDocument}
	}
	return out, nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
