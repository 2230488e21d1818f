package services

import (
	"strings"
	"time"

	"atendai/internal/models"
)

// IdleThreshold is how long a conversation without usable intents must be
// silent before it is classified as idle
const IdleThreshold = 30 * time.Minute

// ClassifyConversationState maps a conversation's message and intent history
// to a coarse phase label. It is a stateless classification, not a guarded
// state machine: it re-evaluates from scratch on every call and can move
// between any two states on consecutive calls.
//
// Precedence on the most recent intent, in strict order:
//  1. contains "escalation"            -> escalation
//  2. contains "complaint"             -> support
//  3. contains "resolved" or "thanks"  -> resolution
//  4. any intent present               -> inquiry
//  5. silent for over 30 minutes       -> idle
//  6. default with history             -> inquiry
func ClassifyConversationState(messages []models.Message, recentIntents []string, now time.Time) string {
	if len(messages) == 0 {
		return models.StateGreeting
	}

	if len(recentIntents) > 0 {
		latest := strings.ToLower(recentIntents[0])
		switch {
		case strings.Contains(latest, "escalation"):
			return models.StateEscalation
		case strings.Contains(latest, "complaint"):
			return models.StateSupport
		case strings.Contains(latest, "resolved"), strings.Contains(latest, "thanks"):
			return models.StateResolution
		default:
			return models.StateInquiry
		}
	}

	lastMessageAt := messages[len(messages)-1].Timestamp
	if now.Sub(lastMessageAt) > IdleThreshold {
		return models.StateIdle
	}

	return models.StateInquiry
}
