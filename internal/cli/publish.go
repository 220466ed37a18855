package cli

import (
	"errors"
	"flag"
	"strings"
	"time"

	"payouts/internal/amqp"
)

// PublishConfig is the input of cmd/approval-publish: one reaction to inject
// into the queue by hand, e.g. to replay an approval the bridge missed.
type PublishConfig struct {
	MessageID string
	ChannelID string
	GuildID   string
	Author    string
	Content   string
	Emoji     string
	ReactorID string
	Roles     string
	Bot       bool
	Removed   bool
	At        string
}

// ParsePublishConfig parses flags; defaultEmoji is the configured approval
// emoji.
func ParsePublishConfig(fs *flag.FlagSet, args []string, defaultEmoji string) (PublishConfig, error) {
	var cfg PublishConfig
	fs.StringVar(&cfg.MessageID, "message-id", "", "id of the reacted message (required)")
	fs.StringVar(&cfg.ChannelID, "channel", "", "channel id of the message")
	fs.StringVar(&cfg.GuildID, "guild", "", "guild id of the message")
	fs.StringVar(&cfg.Author, "author", "", "display name of the message author")
	fs.StringVar(&cfg.Content, "content", "", "message text, e.g. \"PAYOUT $1,200\" (required)")
	fs.StringVar(&cfg.Emoji, "emoji", defaultEmoji, "reaction emoji")
	fs.StringVar(&cfg.ReactorID, "reactor", "", "id of the reacting member")
	fs.StringVar(&cfg.Roles, "roles", "", "comma separated role ids of the reacting member")
	fs.BoolVar(&cfg.Bot, "bot", false, "reactor is a bot")
	fs.BoolVar(&cfg.Removed, "removed", false, "reaction was removed")
	fs.StringVar(&cfg.At, "at", "", "RFC3339 reaction time (default now)")

	if err := fs.Parse(args); err != nil {
		return PublishConfig{}, err
	}
	if strings.TrimSpace(cfg.MessageID) == "" {
		return PublishConfig{}, errors.New("-message-id is required")
	}
	if strings.TrimSpace(cfg.Content) == "" {
		return PublishConfig{}, errors.New("-content is required")
	}
	return cfg, nil
}

// Reaction builds the message to publish.
func (c PublishConfig) Reaction(now time.Time) (*amqp.ReactionMessage, error) {
	at := now
	if c.At != "" {
		parsed, err := time.Parse(time.RFC3339, c.At)
		if err != nil {
			return nil, err
		}
		at = parsed
	}

	roles := []string{}
	for _, r := range strings.Split(c.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	return &amqp.ReactionMessage{
		MessageID:      strings.TrimSpace(c.MessageID),
		ChannelID:      c.ChannelID,
		GuildID:        c.GuildID,
		AuthorName:     c.Author,
		Content:        c.Content,
		Emoji:          c.Emoji,
		ReactorID:      c.ReactorID,
		ReactorIsBot:   c.Bot,
		ReactorRoleIDs: roles,
		Removed:        c.Removed,
		Timestamp:      at,
	}, nil
}
