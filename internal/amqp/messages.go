package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ReactionMessage is one reaction on a chat message, as relayed by the chat
// bridge. It carries everything the approval gate needs so the worker never
// calls back into the chat platform.
type ReactionMessage struct {
	MessageID      string    `json:"messageId"`
	ChannelID      string    `json:"channelId"`
	GuildID        string    `json:"guildId"`
	AuthorName     string    `json:"authorName"`
	Content        string    `json:"content"`
	Emoji          string    `json:"emoji"`
	ReactorID      string    `json:"reactorId"`
	ReactorIsBot   bool      `json:"reactorIsBot"`
	ReactorRoleIDs []string  `json:"reactorRoleIds"`
	Removed        bool      `json:"removed"`
	Timestamp      time.Time `json:"timestamp"`
}

var errMissingMessageID = errors.New("reaction message has no messageId")

// ToJSON converts the message to JSON bytes
func (m *ReactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReactionMessageFromJSON decodes a message and rejects bodies without a
// message id.
func ReactionMessageFromJSON(data []byte) (*ReactionMessage, error) {
	var msg ReactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.MessageID == "" {
		return nil, errMissingMessageID
	}
	return &msg, nil
}
