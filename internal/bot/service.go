// Package bot is the Telegram moderation adapter: owners review pending
// posts and approve or reject them from chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clonedigital/postpilot/internal/activity"
	"github.com/clonedigital/postpilot/internal/config"
	"github.com/clonedigital/postpilot/internal/models"
	"github.com/clonedigital/postpilot/internal/ratelimit"
	"github.com/clonedigital/postpilot/internal/store"
)

// How many pending posts /pending shows at once.
const pendingPageSize = 5

const helpText = `<b>postpilot moderation</b>

/pending - review posts waiting for approval
/approve &lt;id&gt; - approve a post
/reject &lt;id&gt; - reject a post
/help - this message`

// Sender is the outbound Telegram surface, stubbed in tests.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// Service handles webhook updates and sends notifications.
type Service struct {
	store        store.Store
	api          Sender
	limiter      ratelimit.Limiter
	recorder     *activity.Recorder
	cfg          *config.Config
	ownerID      uuid.UUID
	allowedChats map[int64]bool
}

// NewService creates the moderation bot. It fails when the configured
// owner ID or chat allowlist cannot be parsed.
func NewService(s store.Store, api Sender, l ratelimit.Limiter, r *activity.Recorder, cfg *config.Config) (*Service, error) {
	ownerID, err := uuid.Parse(cfg.TelegramOwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_OWNER_USER_ID is not a valid UUID: %w", err)
	}

	allowed := make(map[int64]bool, len(cfg.TelegramAllowedChatIDs))
	for _, raw := range cfg.TelegramAllowedChatIDs {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_CHAT_IDS entry %q is not a chat id: %w", raw, err)
		}
		allowed[chatID] = true
	}
	if len(allowed) == 0 {
		return nil, errors.New("TELEGRAM_ALLOWED_CHAT_IDS must list at least one chat")
	}

	return &Service{
		store:        s,
		api:          api,
		limiter:      l,
		recorder:     r,
		cfg:          cfg,
		ownerID:      ownerID,
		allowedChats: allowed,
	}, nil
}

// HandleUpdate routes one webhook update. Updates from chats outside
// the allowlist are dropped without a reply.
func (s *Service) HandleUpdate(ctx context.Context, update *Update) error {
	switch {
	case update.CallbackQuery != nil:
		return s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		return s.handleCommand(ctx, update.Message)
	default:
		return nil
	}
}

func (s *Service) handleCommand(ctx context.Context, msg *Message) error {
	chatID := msg.Chat.ID
	if !s.allowedChats[chatID] {
		logrus.Warnf("Ignoring command from unauthorized chat %d", chatID)
		return nil
	}

	limit := s.limiter.Allow(ctx, fmt.Sprintf("bot:%d", chatID), s.cfg.BotLimit.MaxRequests, s.cfg.BotLimit.Window)
	if !limit.Allowed {
		return s.api.SendMessage(ctx, chatID,
			fmt.Sprintf("Too many commands. Try again in %d seconds.", int(limit.RetryAfter.Seconds())+1), nil)
	}

	command, arg := splitCommand(msg.Text)
	switch command {
	case "/start", "/help":
		return s.api.SendMessage(ctx, chatID, helpText, nil)
	case "/pending":
		return s.sendPending(ctx, chatID)
	case "/approve":
		return s.moderateByCommand(ctx, chatID, arg, true)
	case "/reject":
		return s.moderateByCommand(ctx, chatID, arg, false)
	default:
		return s.api.SendMessage(ctx, chatID, "Unknown command. Send /help for the command list.", nil)
	}
}

func (s *Service) sendPending(ctx context.Context, chatID int64) error {
	posts, err := s.store.ListPendingPosts(ctx, s.ownerID, pendingPageSize)
	if err != nil {
		logrus.Errorf("Failed to list pending posts: %v", err)
		return s.api.SendMessage(ctx, chatID, "Something went wrong, try again later.", nil)
	}
	if len(posts) == 0 {
		return s.api.SendMessage(ctx, chatID, "No posts waiting for review.", nil)
	}

	for _, post := range posts {
		keyboard := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "✅ Approve", CallbackData: "approve:" + post.ShortID()},
			{Text: "❌ Reject", CallbackData: "reject:" + post.ShortID()},
		}}}
		if err := s.api.SendMessage(ctx, chatID, formatPost(&post), keyboard); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) moderateByCommand(ctx context.Context, chatID int64, shortID string, approve bool) error {
	if shortID == "" {
		return s.api.SendMessage(ctx, chatID, "Usage: /approve &lt;id&gt; or /reject &lt;id&gt;", nil)
	}
	return s.api.SendMessage(ctx, chatID, s.moderate(ctx, shortID, approve), nil)
}

func (s *Service) handleCallback(ctx context.Context, query *CallbackQuery) error {
	if query.Message == nil || !s.allowedChats[query.Message.Chat.ID] {
		logrus.Warnf("Ignoring callback from unauthorized chat")
		return nil
	}

	action, shortID, ok := strings.Cut(query.Data, ":")
	if !ok || (action != "approve" && action != "reject") {
		return s.api.AnswerCallbackQuery(ctx, query.ID, "Unknown action.")
	}

	return s.api.AnswerCallbackQuery(ctx, query.ID, s.moderate(ctx, shortID, action == "approve"))
}

// moderate resolves the short ID and performs the status transition.
// Both the lookup and the transition treat a lost race the same way: the
// post is simply no longer pending.
func (s *Service) moderate(ctx context.Context, shortID string, approve bool) string {
	post, err := s.store.MatchPendingPost(ctx, s.ownerID, strings.ToLower(shortID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Post not found or already processed."
		}
		logrus.Errorf("Failed to match pending post %q: %v", shortID, err)
		return "Something went wrong, try again later."
	}

	target := models.PostStatusApproved
	activityType := models.ActivityPostApproved
	verb := "Approved"
	if !approve {
		target = models.PostStatusRejected
		activityType = models.ActivityPostRejected
		verb = "Rejected"
	}

	if err := s.store.TransitionPost(ctx, post.ID, models.PostStatusPending, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "Post not found or already processed."
		}
		logrus.Errorf("Failed to transition post %s: %v", post.ID, err)
		return "Something went wrong, try again later."
	}

	s.recorder.Record(ctx, s.ownerID, post.PersonaID, activityType,
		fmt.Sprintf("%s post %s via Telegram", verb, post.ShortID()))

	return fmt.Sprintf("%s post %s.", verb, post.ShortID())
}

// NotifyGenerated announces freshly generated drafts to every allowed
// chat. Notification failures are logged, never propagated.
func (s *Service) NotifyGenerated(ctx context.Context, personaName string, posts []*models.Post) {
	text := fmt.Sprintf("🤖 %d new draft post(s) for <b>%s</b>. Send /pending to review.",
		len(posts), html.EscapeString(personaName))
	s.broadcast(ctx, text)
}

// NotifyPublished announces a successful publish.
func (s *Service) NotifyPublished(ctx context.Context, post *models.Post, tweetURL string) {
	text := fmt.Sprintf("🚀 Post %s published: %s", post.ShortID(), tweetURL)
	s.broadcast(ctx, text)
}

// NotifySynced announces new feed entries.
func (s *Service) NotifySynced(ctx context.Context, sourceName string, count int) {
	if count == 0 {
		return
	}
	text := fmt.Sprintf("📰 %d new entries from <b>%s</b>. Send /pending to review.",
		count, html.EscapeString(sourceName))
	s.broadcast(ctx, text)
}

func (s *Service) broadcast(ctx context.Context, text string) {
	for chatID := range s.allowedChats {
		if err := s.api.SendMessage(ctx, chatID, text, nil); err != nil {
			logrus.Warnf("Failed to notify chat %d: %v", chatID, err)
		}
	}
}

func formatPost(post *models.Post) string {
	label := post.OriginLabel
	if label == "" {
		label = string(post.Origin)
	}
	return fmt.Sprintf("<b>%s</b> · %s\n\n%s",
		post.ShortID(), html.EscapeString(label), html.EscapeString(post.Content))
}

func splitCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	// Commands may carry the bot name suffix in group chats.
	command, _, _ := strings.Cut(fields[0], "@")
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	return command, arg
}
