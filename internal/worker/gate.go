package worker

import (
	"slices"

	"payouts/internal/amqp"
)

// GateConfig holds the collaborator rules a reaction must satisfy to count as
// an approval.
type GateConfig struct {
	ChannelID       string
	ValidatorRoleID string
	Emoji           string
}

// Gate filters raw reactions down to approvals.
type Gate struct {
	cfg GateConfig
}

func NewGate(cfg GateConfig) Gate {
	return Gate{cfg: cfg}
}

// Ignore reasons, also used as log values.
const (
	reasonRemoved       = "reaction_removed"
	reasonBot           = "reactor_is_bot"
	reasonDirectMessage = "not_in_guild"
	reasonNotConfigured = "gate_not_configured"
	reasonWrongChannel  = "wrong_channel"
	reasonWrongEmoji    = "wrong_emoji"
	reasonMissingRole   = "missing_validator_role"
)

// Check returns "" when msg is an approval, otherwise the first failing rule.
func (g Gate) Check(msg *amqp.ReactionMessage) string {
	switch {
	case msg.Removed:
		return reasonRemoved
	case msg.ReactorIsBot:
		return reasonBot
	case msg.GuildID == "":
		return reasonDirectMessage
	case g.cfg.ChannelID == "" || g.cfg.ValidatorRoleID == "":
		return reasonNotConfigured
	case msg.ChannelID != g.cfg.ChannelID:
		return reasonWrongChannel
	case msg.Emoji != g.cfg.Emoji:
		return reasonWrongEmoji
	case !slices.Contains(msg.ReactorRoleIDs, g.cfg.ValidatorRoleID):
		return reasonMissingRole
	}
	return ""
}
