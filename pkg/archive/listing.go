package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ModifiedLayout is the format of the anchor names on listing pages.
const ModifiedLayout = "2006-01-02T15:04:05Z"

// Entry is one record on a listing page, before its label is resolved.
type Entry struct {
	Label     string // free-text date label, e.g. "Sunday 23rd"
	Modified  time.Time
	RemoteID  string
	DetailURL string
	PageURL   string // listing page the entry was found on
}

// Iterator yields listing entries until io.EOF.
type Iterator interface {
	Next(ctx context.Context) (Entry, error)
}

// Listing iterates the archive newest first, fetching pages on demand.
type Listing struct {
	client  *Client
	next    string
	done    bool
	entries []Entry
	visited map[string]bool
}

// Listing returns an iterator starting at startURL, or at the first page when
// startURL is empty.
func (c *Client) Listing(startURL string) Iterator {
	return &Listing{client: c, next: startURL, visited: map[string]bool{}}
}

// Next returns the next entry, or io.EOF once the last page is exhausted.
func (l *Listing) Next(ctx context.Context) (Entry, error) {
	for len(l.entries) == 0 {
		if l.done {
			return Entry{}, io.EOF
		}
		if err := l.fetch(ctx); err != nil {
			return Entry{}, err
		}
	}
	e := l.entries[0]
	l.entries = l.entries[1:]
	return e, nil
}

func (l *Listing) fetch(ctx context.Context) error {
	pageURL, err := l.client.resolve(l.next)
	if err != nil {
		return err
	}
	if l.visited[pageURL] {
		return fmt.Errorf("listing links back to already visited page %s", pageURL)
	}
	l.visited[pageURL] = true
	page, err := l.client.Get(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to fetch listing: %w", err)
	}
	entries, next, err := parseListing(page, pageURL)
	if err != nil {
		return err
	}
	l.client.log.Debug("listing page", zap.String("url", pageURL), zap.Int("entries", len(entries)))
	l.entries = entries
	if next == "" {
		l.done = true
	}
	l.next = next
	return nil
}

// parseListing extracts the entries of one page and the absolute URL of the
// following page, which is empty on the last page.
func parseListing(page, pageURL string) ([]Entry, string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse listing %s: %w", pageURL, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	abs := func(href string) (string, error) {
		ref, err := url.Parse(href)
		if err != nil {
			return "", fmt.Errorf("invalid link %q on %s: %w", href, pageURL, err)
		}
		return base.ResolveReference(ref).String(), nil
	}

	elements := flatten(doc)

	var entries []Entry
	next := ""
	for i, n := range elements {
		if n.Data != "a" {
			continue
		}
		if hasClass(n, "next") && next == "" {
			if href, ok := attr(n, "href"); ok && href != "" {
				if next, err = abs(href); err != nil {
					return nil, "", err
				}
			}
			continue
		}
		name, ok := attr(n, "name")
		if !ok {
			continue
		}
		modified, err := time.Parse(ModifiedLayout, name)
		if err != nil {
			return nil, "", fmt.Errorf("unexpected anchor %q on %s: %w", name, pageURL, err)
		}
		label := findAfter(elements, i, func(n *html.Node) bool { return n.Data == "strong" })
		if label < 0 {
			return nil, "", fmt.Errorf("no label after anchor %q on %s", name, pageURL)
		}
		read := findAfter(elements, label, func(n *html.Node) bool { return n.Data == "a" && hasClass(n, "read") })
		if read < 0 {
			return nil, "", fmt.Errorf("no read link after anchor %q on %s", name, pageURL)
		}
		href, _ := attr(elements[read], "href")
		detail, err := abs(href)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, Entry{
			Label:     textContent(elements[label]),
			Modified:  modified,
			RemoteID:  href[strings.LastIndex(href, "/")+1:],
			DetailURL: detail,
			PageURL:   pageURL,
		})
	}
	return entries, next, nil
}

// flatten lists element nodes in document order.
func flatten(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func findAfter(elements []*html.Node, i int, match func(*html.Node) bool) int {
	for j := i + 1; j < len(elements); j++ {
		if match(elements[j]) {
			return j
		}
	}
	return -1
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
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
