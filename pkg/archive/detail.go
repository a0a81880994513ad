package archive

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Detail is the editable content of one entry.
type Detail struct {
	Summary string
	Body    string
}

// Detail fetches the management page of entry id.
func (c *Client) Detail(ctx context.Context, id string) (Detail, error) {
	page, err := c.Get(ctx, "/"+id+"/manage")
	if err != nil {
		return Detail{}, err
	}
	return parseDetail(page)
}

func parseDetail(page string) (Detail, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Detail{}, fmt.Errorf("failed to parse detail page: %w", err)
	}
	fields := map[string][]string{}
	for _, n := range flatten(doc) {
		if n.Data != "textarea" {
			continue
		}
		if name, ok := attr(n, "name"); ok {
			fields[name] = append(fields[name], textContent(n))
		}
	}
	for _, name := range []string{"summary", "body"} {
		if len(fields[name]) != 1 {
			return Detail{}, fmt.Errorf("expected one %s field, found %d", name, len(fields[name]))
		}
	}
	// the summary is stored escaped a second time
	return Detail{
		Summary: html.UnescapeString(fields["summary"][0]),
		Body:    fields["body"][0],
	}, nil
}
