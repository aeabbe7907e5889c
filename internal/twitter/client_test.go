package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clonedigital/postpilot/internal/apperr"
)

func newTestClient(server *httptest.Server) *Client {
	c := NewClient(testCreds)
	c.baseURL = server.URL
	return c
}

func TestClient_CreateTweet(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1234567890"}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server).CreateTweet(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, "1234567890", result.TweetID)
	assert.Equal(t, "https://twitter.com/i/status/1234567890", result.TweetURL)
	assert.Equal(t, "hello world", gotBody["text"])
	assert.Contains(t, gotAuth, "OAuth ")
	assert.Contains(t, gotAuth, "oauth_signature=")
}

func TestClient_CreateTweet_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedKind apperr.Kind
		messagePart  string
	}{
		{
			name:         "Platform rate limit",
			status:       http.StatusTooManyRequests,
			body:         `{"detail":"Too Many Requests"}`,
			expectedKind: apperr.KindRateLimited,
		},
		{
			name:         "Duplicate content",
			status:       http.StatusForbidden,
			body:         `{"detail":"You are not allowed to create a Tweet with duplicate content."}`,
			expectedKind: apperr.KindForbidden,
			messagePart:  "duplicate content",
		},
		{
			name:         "Suspended account",
			status:       http.StatusForbidden,
			body:         `{"detail":"Your account is suspended and is not permitted to access this feature."}`,
			expectedKind: apperr.KindForbidden,
			messagePart:  "suspended",
		},
		{
			name:         "Expired credentials",
			status:       http.StatusUnauthorized,
			body:         `{"detail":"Unauthorized"}`,
			expectedKind: apperr.KindUnauthorized,
			messagePart:  "credentials",
		},
		{
			name:         "Fallback with detail",
			status:       http.StatusBadRequest,
			body:         `{"errors":[{"message":"text too long"}]}`,
			expectedKind: apperr.KindUpstream,
			messagePart:  "text too long",
		},
		{
			name:         "Non-JSON body",
			status:       http.StatusBadGateway,
			body:         `<html>upstream broke</html>`,
			expectedKind: apperr.KindUpstream,
			messagePart:  "502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server).CreateTweet(context.Background(), "hello")
			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, apperr.KindOf(err))
			if tt.messagePart != "" {
				assert.Contains(t, err.Error(), tt.messagePart)
			}
		})
	}
}

func TestClient_UserTweets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("max_results"))
		assert.Equal(t, "created_at,public_metrics", r.URL.Query().Get("tweet.fields"))
		assert.Equal(t, "retweets,replies", r.URL.Query().Get("exclude"))
		assert.Equal(t, "999", r.URL.Query().Get("since_id"))
		assert.Contains(t, r.Header.Get("Authorization"), "OAuth ")

		w.Write([]byte(`{"data":[
			{"id":"1001","text":"first","created_at":"2026-08-01T10:00:00Z","public_metrics":{"like_count":12,"retweet_count":3}},
			{"id":"1002","text":"second","created_at":"2026-08-02T10:00:00Z","public_metrics":{"like_count":5,"retweet_count":0}}
		]}`))
	}))
	defer server.Close()

	tweets, err := newTestClient(server).UserTweets(context.Background(), "42", "999")
	require.NoError(t, err)
	require.Len(t, tweets, 2)

	assert.Equal(t, "1001", tweets[0].ID)
	assert.Equal(t, "first", tweets[0].Text)
	assert.Equal(t, 12, tweets[0].LikeCount)
	assert.Equal(t, 3, tweets[0].RetweetCount)
	assert.Equal(t, 2026, tweets[0].CreatedAt.Year())
}

func TestClient_UserTweets_EmptyTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("since_id"))
		w.Write([]byte(`{"meta":{"result_count":0}}`))
	}))
	defer server.Close()

	tweets, err := newTestClient(server).UserTweets(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Empty(t, tweets)
}
