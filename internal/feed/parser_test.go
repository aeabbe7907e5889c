package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title><![CDATA[Go 1.24 released & ready]]></title>
      <description><![CDATA[<p>The Go team <b>announced</b> the release.</p>]]></description>
      <link>https://example.com/go-release</link>
    </item>
    <item>
      <title>Kubernetes &amp; cloud costs</title>
      <description>Running clusters &lt;em&gt;cheaply&lt;/em&gt; is hard &#39;at scale&#39;</description>
      <link>https://example.com/k8s-costs</link>
    </item>
  </channel>
</rss>`

func TestParse_RSSRoundTrip(t *testing.T) {
	items := Parse(sampleRSS, 10)
	require.Len(t, items, 2)

	assert.Equal(t, "Go 1.24 released & ready", items[0].Title)
	assert.Equal(t, "The Go team announced the release.", items[0].Description)
	assert.Equal(t, "https://example.com/go-release", items[0].Link)

	assert.Equal(t, "Kubernetes & cloud costs", items[1].Title)
	assert.Equal(t, "Running clusters cheaply is hard 'at scale'", items[1].Description)
	assert.Equal(t, "https://example.com/k8s-costs", items[1].Link)

	for _, item := range items {
		assert.NotContains(t, item.Description, "<")
		assert.NotContains(t, item.Description, "&amp;")
	}
}

func TestParse_AtomEntries(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title type="text">Atom post</title>
    <summary>Summary text here</summary>
    <link rel="alternate" href="https://example.com/atom-post"/>
  </entry>
</feed>`

	items := Parse(doc, 10)
	require.Len(t, items, 1)
	assert.Equal(t, "Atom post", items[0].Title)
	assert.Equal(t, "Summary text here", items[0].Description)
	assert.Equal(t, "https://example.com/atom-post", items[0].Link)
}

func TestParse_MixedDocumentConcatenates(t *testing.T) {
	doc := `<rss><item><title>RSS one</title><link>https://a</link></item></rss>
<feed><entry><title>Atom one</title><link href="https://b"/></entry></feed>`

	items := Parse(doc, 10)
	require.Len(t, items, 2)
	assert.Equal(t, "RSS one", items[0].Title)
	assert.Equal(t, "Atom one", items[1].Title)
}

func TestParse_DiscardsEmptyTitles(t *testing.T) {
	doc := `<rss>
  <item><title></title><link>https://no-title</link></item>
  <item><title>Kept</title><link>https://kept</link></item>
</rss>`

	items := Parse(doc, 10)
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

func TestParse_CapsItemCount(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("<item><title>post</title></item>")
	}
	assert.Len(t, Parse(b.String(), 10), 10)
}

func TestParse_MalformedDocumentDegrades(t *testing.T) {
	assert.Empty(t, Parse("not xml at all", 10))
	assert.Empty(t, Parse("<rss><item><title>unterminated", 10))
}

func TestShapeContent(t *testing.T) {
	t.Run("Title only", func(t *testing.T) {
		got := ShapeContent(Item{Title: "Short title"})
		assert.Equal(t, "Short title", got)
	})

	t.Run("Title with description", func(t *testing.T) {
		got := ShapeContent(Item{Title: "Title", Description: "Some detail"})
		assert.Equal(t, "Title: Some detail", got)
	})

	t.Run("Long description truncated", func(t *testing.T) {
		got := ShapeContent(Item{Title: "T", Description: strings.Repeat("d", 400)})
		assert.LessOrEqual(t, len([]rune(got)), shapedContentLimit)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("Combined string capped", func(t *testing.T) {
		got := ShapeContent(Item{
			Title:       strings.Repeat("t", 200),
			Description: strings.Repeat("d", 200),
		})
		assert.Equal(t, shapedContentLimit, len([]rune(got)))
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("Stable for equal input", func(t *testing.T) {
		assert.Equal(t, Fingerprint("Hello world"), Fingerprint("Hello world"))
	})

	t.Run("Normalizes case and whitespace", func(t *testing.T) {
		assert.Equal(t, Fingerprint("Hello   World"), Fingerprint("hello world"))
		assert.Equal(t, Fingerprint("hello\nworld"), Fingerprint("Hello World"))
	})

	t.Run("Ignores content past the prefix", func(t *testing.T) {
		base := strings.Repeat("a ", 60)
		assert.Equal(t, Fingerprint(base+"tail one"), Fingerprint(base+"tail two"))
	})

	t.Run("Different content differs", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("first post"), Fingerprint("second post"))
	})
}
