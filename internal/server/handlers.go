package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/apperr"
	"github.com/clonedigital/postpilot/internal/bot"
	"github.com/clonedigital/postpilot/internal/generator"
)

// userIDHeader carries the caller identity set by the auth proxy in
// front of this service.
const userIDHeader = "X-User-ID"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, apperr.Unauthorized("missing " + userIDHeader + " header")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized(userIDHeader + " is not a valid UUID")
	}
	return userID, nil
}

func decodeBody(r *http.Request, dst interface{ Validate() error }) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.InvalidInput("request body is not valid JSON")
	}
	if err := dst.Validate(); err != nil {
		return apperr.InvalidInput(err.Error())
	}
	return nil
}

type generateRequest struct {
	PersonaID     string `json:"persona_id"`
	Topic         string `json:"topic"`
	Count         int    `json:"count"`
	SourceID      string `json:"source_id"`
	Model         string `json:"model"`
	UseTweetStyle bool   `json:"use_tweet_style"`
}

func (r generateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PersonaID, validation.Required, is.UUID),
		validation.Field(&r.Count, validation.Min(0), validation.Max(10)),
		validation.Field(&r.SourceID, is.UUID),
		validation.Field(&r.Topic, validation.Length(0, 500)),
	)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	genReq := generator.Request{
		PersonaID:     uuid.MustParse(req.PersonaID),
		Topic:         req.Topic,
		Count:         req.Count,
		Model:         req.Model,
		UseTweetStyle: req.UseTweetStyle,
	}
	if req.SourceID != "" {
		sourceID := uuid.MustParse(req.SourceID)
		genReq.SourceID = &sourceID
	}

	posts, err := s.generator.Generate(r.Context(), userID, genReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"posts": posts})
}

type publishRequest struct {
	PostID string `json:"post_id"`
}

func (r publishRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PostID, validation.Required, is.UUID),
	)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, apperr.InvalidState("publishing is not configured"))
		return
	}

	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req publishRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.publisher.Publish(r.Context(), userID, uuid.MustParse(req.PostID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"tweet_id":  result.TweetID,
		"tweet_url": result.TweetURL,
	})
}

type syncRequest struct {
	SourceID string `json:"source_id"`
}

func (r syncRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourceID, validation.Required, is.UUID),
	)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.syncer.Sync(r.Context(), userID, uuid.MustParse(req.SourceID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type fetchTweetsRequest struct {
	PersonaID string `json:"persona_id"`
}

func (r fetchTweetsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PersonaID, validation.Required, is.UUID),
	)
}

func (s *Server) handleFetchTweets(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, apperr.InvalidState("publishing is not configured"))
		return
	}

	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req fetchTweetsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.publisher.FetchTweets(r.Context(), userID, uuid.MustParse(req.PersonaID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTelegramWebhook verifies the shared secret and forwards the
// update. It always answers 200 for authenticated requests: Telegram
// retries non-2xx responses, and a bad update would retry forever.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if s.bot == nil {
		writeError(w, apperr.NotFound("bot is not configured"))
		return
	}

	secret := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.TelegramWebhookSecret)) != 1 {
		writeError(w, apperr.Unauthorized("invalid webhook secret"))
		return
	}

	var update bot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, apperr.InvalidInput("webhook body is not valid JSON"))
		return
	}

	if err := s.bot.HandleUpdate(r.Context(), &update); err != nil {
		logrus.Errorf("Webhook update %d failed: %v", update.UpdateID, err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
