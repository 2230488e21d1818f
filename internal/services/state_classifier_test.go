package services

import (
	"testing"
	"time"

	"atendai/internal/models"
)

func TestClassifyConversationState(t *testing.T) {
	now := time.Now()
	recent := []models.Message{{Content: "hi", Timestamp: now.Add(-time.Minute)}}
	stale := []models.Message{{Content: "hi", Timestamp: now.Add(-45 * time.Minute)}}

	tests := []struct {
		name     string
		messages []models.Message
		intents  []string
		want     string
	}{
		{"no messages", nil, nil, models.StateGreeting},
		{"escalation intent", recent, []string{"escalation_request"}, models.StateEscalation},
		{"complaint intent", recent, []string{"billing_complaint"}, models.StateSupport},
		{"resolved intent", recent, []string{"issue_resolved"}, models.StateResolution},
		{"thanks intent", recent, []string{"thanks_goodbye"}, models.StateResolution},
		{"generic intent", recent, []string{"plan_inquiry"}, models.StateInquiry},
		{"only latest intent counts", recent, []string{"plan_inquiry", "escalation_request"}, models.StateInquiry},
		{"escalation beats complaint in same intent order", recent, []string{"escalation_after_complaint"}, models.StateEscalation},
		{"no intents, recent message", recent, nil, models.StateInquiry},
		{"no intents, stale message", stale, nil, models.StateIdle},
		{"stale but intent present", stale, []string{"plan_inquiry"}, models.StateInquiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConversationState(tt.messages, tt.intents, now)
			if got != tt.want {
				t.Errorf("ClassifyConversationState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyConversationStateIsStateless(t *testing.T) {
	now := time.Now()
	messages := []models.Message{{Content: "hi", Timestamp: now}}

	// The same history can flip between any two states on consecutive calls
	if got := ClassifyConversationState(messages, []string{"escalation_request"}, now); got != models.StateEscalation {
		t.Fatalf("expected escalation, got %s", got)
	}
	if got := ClassifyConversationState(messages, []string{"thanks"}, now); got != models.StateResolution {
		t.Fatalf("expected resolution after escalation with no guard, got %s", got)
	}
}
