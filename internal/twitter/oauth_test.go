package twitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	ConsumerKey:       "xvz1evFS4wEEPTGEFPHBog",
	ConsumerSecret:    "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
	AccessToken:       "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
	AccessTokenSecret: "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Unreserved characters pass through", input: "abcXYZ019-._~", expected: "abcXYZ019-._~"},
		{name: "Space", input: "a b", expected: "a%20b"},
		{name: "OAuth reserved sub-delims", input: "!'()*", expected: "%21%27%28%29%2A"},
		{name: "Ampersand and equals", input: "a&b=c", expected: "a%26b%3Dc"},
		{name: "Plus sign", input: "1+1", expected: "1%2B1"},
		{name: "UTF-8 multibyte", input: "Ladies + Gentlemen", expected: "Ladies%20%2B%20Gentlemen"},
		{name: "Uppercase hex digits", input: "/", expected: "%2F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, percentEncode(tt.input))
		})
	}
}

func TestBuildOAuthHeader_Deterministic(t *testing.T) {
	const nonce = "ea9ec8429b68d6b77cd5600adbbb0456"
	const timestamp = int64(1318622958)

	first := buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds, nil, nonce, timestamp)
	second := buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds, nil, nonce, timestamp)
	assert.Equal(t, first, second, "fixed inputs must produce a byte-identical header")
}

func TestBuildOAuthHeader_SignatureChangesWithAnyParameter(t *testing.T) {
	const nonce = "ea9ec8429b68d6b77cd5600adbbb0456"
	const timestamp = int64(1318622958)

	base := buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds, nil, nonce, timestamp)

	variants := map[string]string{
		"method":    buildOAuthHeaderAt("GET", "https://api.twitter.com/2/tweets", testCreds, nil, nonce, timestamp),
		"url":       buildOAuthHeaderAt("POST", "https://api.twitter.com/2/other", testCreds, nil, nonce, timestamp),
		"nonce":     buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds, nil, "other", timestamp),
		"timestamp": buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds, nil, nonce, timestamp+1),
		"extra param": buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", testCreds,
			map[string]string{"since_id": "1"}, nonce, timestamp),
	}

	for name, variant := range variants {
		assert.NotEqual(t, signatureOf(t, base), signatureOf(t, variant), "changing %s must change the signature", name)
	}

	altCreds := testCreds
	altCreds.ConsumerSecret = "different"
	withAltSecret := buildOAuthHeaderAt("POST", "https://api.twitter.com/2/tweets", altCreds, nil, nonce, timestamp)
	assert.NotEqual(t, signatureOf(t, base), signatureOf(t, withAltSecret))
}

func TestBuildOAuthHeader_Shape(t *testing.T) {
	header := buildOAuthHeaderAt("GET", "https://api.twitter.com/2/users/1/tweets", testCreds,
		map[string]string{"max_results": "100", "since_id": "42"}, "nonce123", 1700000000)

	require.True(t, strings.HasPrefix(header, "OAuth "))

	// Only oauth_* params appear in the header; the query params are
	// signed but sent in the URL.
	assert.NotContains(t, header, "max_results")
	assert.NotContains(t, header, "since_id")

	// Params are sorted by key and individually quoted.
	expectedOrder := []string{
		"oauth_consumer_key", "oauth_nonce", "oauth_signature",
		"oauth_signature_method", "oauth_timestamp", "oauth_token", "oauth_version",
	}
	last := -1
	for _, key := range expectedOrder {
		idx := strings.Index(header, key+`="`)
		require.NotEqual(t, -1, idx, "header must contain %s", key)
		assert.Greater(t, idx, last, "%s out of order", key)
		last = idx
	}

	assert.Contains(t, header, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, header, `oauth_version="1.0"`)
	assert.Contains(t, header, `oauth_timestamp="1700000000"`)
}

func signatureOf(t *testing.T, header string) string {
	t.Helper()
	const marker = `oauth_signature="`
	idx := strings.Index(header, marker)
	require.NotEqual(t, -1, idx)
	rest := header[idx+len(marker):]
	end := strings.Index(rest, `"`)
	require.NotEqual(t, -1, end)
	return rest[:end]
}
