package feed

import (
	"strconv"
	"strings"
)

const (
	// descriptionLimit caps how much of an item's description makes it
	// into the shaped post content.
	descriptionLimit = 180

	// shapedContentLimit leaves margin below the platform's 280-char
	// budget for an ellipsis and operator edits.
	shapedContentLimit = 270

	// fingerprintPrefix is how much normalized content feeds the hash.
	fingerprintPrefix = 100
)

// ShapeContent combines an item's title and truncated description into
// the draft post text, hard-capped at the shaped content limit.
func ShapeContent(item Item) string {
	content := strings.TrimSpace(item.Title)
	if desc := strings.TrimSpace(item.Description); desc != "" {
		content += ": " + truncate(desc, descriptionLimit)
	}
	return truncate(content, shapedContentLimit)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// Fingerprint hashes normalized content for duplicate suppression. The
// hash is a rolling multiply-add, NOT cryptographic: collisions are
// possible and accepted, because a false duplicate only suppresses one
// feed item.
func Fingerprint(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	runes := []rune(normalized)
	if len(runes) > fingerprintPrefix {
		runes = runes[:fingerprintPrefix]
	}

	var h uint64
	for _, r := range runes {
		h = h*31 + uint64(r)
	}
	return strconv.FormatUint(h, 16)
}
