// Package feed extracts items from RSS and Atom documents.
//
// Parsing is regex-based and best-effort: the feeds this pipeline
// consumes are simple enough that a malformed document should degrade
// to fewer (or zero) items rather than fail the whole sync.
package feed

import (
	"fmt"
	"regexp"
	"strings"
)

// Item is one entry extracted from a feed.
type Item struct {
	Title       string
	Description string
	Link        string
}

var (
	itemRe  = regexp.MustCompile(`(?s)<item[\s>].*?</item>`)
	entryRe = regexp.MustCompile(`(?s)<entry[\s>].*?</entry>`)

	rssLinkRe  = regexp.MustCompile(`(?s)<link>(.*?)</link>`)
	atomLinkRe = regexp.MustCompile(`<link[^>]*href="([^"]*)"`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)

	cdataRes = map[string]*regexp.Regexp{}
	plainRes = map[string]*regexp.Regexp{}

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
		"&amp;", "&",
	)
)

// Tags carrying an item body, in preference order.
var descriptionTags = []string{"description", "summary", "content"}

func init() {
	for _, tag := range append([]string{"title"}, descriptionTags...) {
		cdataRes[tag] = regexp.MustCompile(fmt.Sprintf(`(?s)<%s[^>]*><!\[CDATA\[(.*?)\]\]></%s>`, tag, tag))
		plainRes[tag] = regexp.MustCompile(fmt.Sprintf(`(?s)<%s[^>]*>(.*?)</%s>`, tag, tag))
	}
}

// Parse extracts up to max items from an RSS or Atom document. RSS
// <item> blocks and Atom <entry> blocks are scanned independently and
// concatenated. Items without a title are discarded.
func Parse(document string, max int) []Item {
	var items []Item

	for _, block := range itemRe.FindAllString(document, -1) {
		if item, ok := parseBlock(block, false); ok {
			items = append(items, item)
		}
	}
	for _, block := range entryRe.FindAllString(document, -1) {
		if item, ok := parseBlock(block, true); ok {
			items = append(items, item)
		}
	}

	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items
}

func parseBlock(block string, atom bool) (Item, bool) {
	item := Item{
		Title: extractText(block, "title"),
	}
	if item.Title == "" {
		return Item{}, false
	}

	for _, tag := range descriptionTags {
		if text := extractText(block, tag); text != "" {
			item.Description = text
			break
		}
	}

	if atom {
		if m := atomLinkRe.FindStringSubmatch(block); m != nil {
			item.Link = strings.TrimSpace(m[1])
		}
	} else if m := rssLinkRe.FindStringSubmatch(block); m != nil {
		item.Link = strings.TrimSpace(m[1])
	}

	return item, true
}

// extractText pulls the inner text of a tag, preferring a CDATA payload
// over entity-encoded inner text. Markup inside the payload is
// stripped either way.
func extractText(block, tag string) string {
	if m := cdataRes[tag].FindStringSubmatch(block); m != nil {
		return cleanText(m[1])
	}
	if m := plainRes[tag].FindStringSubmatch(block); m != nil {
		return cleanText(entityReplacer.Replace(m[1]))
	}
	return ""
}

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
