package gemini

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/clonedigital/postpilot/internal/models"
)

var (
	directArrayRe = regexp.MustCompile(`(?s)\[.*\]`)
	codeBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")

	excessNewlinesRe  = regexp.MustCompile(`\n{3,}`)
	trailingPerLineRe = regexp.MustCompile(`(?m)[ \t]+$`)
)

// ExtractPosts pulls a JSON array of generated posts out of raw model
// output. Models wrap their answers inconsistently, so three patterns
// are tried in order: a direct [...] match, a fenced code block, and
// finally the whole text. The first one that parses wins.
func ExtractPosts(text string) ([]models.GeneratedPost, bool) {
	if m := directArrayRe.FindString(text); m != "" {
		if posts, ok := parseArray(m); ok {
			return posts, true
		}
	}

	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		if posts, ok := parseArray(m[1]); ok {
			return posts, true
		}
	}

	return parseArray(text)
}

func parseArray(s string) ([]models.GeneratedPost, bool) {
	var posts []models.GeneratedPost
	if err := json.Unmarshal([]byte(s), &posts); err != nil {
		return nil, false
	}
	return posts, true
}

// Sanitize trims generated content, collapses runs of three or more
// newlines to two, and strips trailing whitespace from every line.
func Sanitize(content string) string {
	content = strings.TrimSpace(content)
	content = excessNewlinesRe.ReplaceAllString(content, "\n\n")
	return trailingPerLineRe.ReplaceAllString(content, "")
}
