package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"atendai/internal/models"
)

func newTestMemory(t *testing.T, store ConversationStore, config CacheConfig) *ConversationMemoryService {
	t.Helper()
	cache := newTestCache(t, store, config)
	t.Cleanup(cache.Shutdown)
	return NewConversationMemoryService(cache, store, nil, store != nil, nil)
}

func userMessage(content, intent, sentiment string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content, Intent: intent, Sentiment: sentiment}
}

func TestAddMessageAssignsIDAndTimestamp(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	c := memory.AddMessage(context.Background(), "+5533999999999", userMessage("oi", "", ""))

	if len(c.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(c.Messages))
	}
	msg := c.Messages[0]
	if msg.ID == "" {
		t.Error("expected a generated message id")
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected a stamped timestamp")
	}
	if c.LastMessageAt == nil || !c.LastMessageAt.Equal(msg.Timestamp) {
		t.Error("expected LastMessageAt to track the message timestamp")
	}
	if c.IsFirstInteraction {
		t.Error("expected first-interaction flag cleared after the first message")
	}
}

func TestAddMessageBoundsWindowButNotTotal(t *testing.T) {
	config := testCacheConfig()
	config.MaxMessagesPerContext = 5
	config.SummaryThreshold = 3
	memory := newTestMemory(t, nil, config)

	var c *models.ConversationContext
	for i := 0; i < 8; i++ {
		c = memory.AddMessage(context.Background(), "+5533999999999",
			userMessage(fmt.Sprintf("message %d", i), "", ""))
	}

	if len(c.Messages) != 5 {
		t.Errorf("expected window of 5 messages, got %d", len(c.Messages))
	}
	if c.TotalMessages != 8 {
		t.Errorf("expected total of 8 messages, got %d", c.TotalMessages)
	}
	if c.Messages[len(c.Messages)-1].Content != "message 7" {
		t.Errorf("expected the newest message kept, got %q", c.Messages[len(c.Messages)-1].Content)
	}
	if c.Messages[0].Content != "message 3" {
		t.Errorf("expected the oldest kept message to be message 3, got %q", c.Messages[0].Content)
	}
}

func TestAddMessageRecentIntentsWindow(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	var c *models.ConversationContext
	for i := 1; i <= 7; i++ {
		c = memory.AddMessage(context.Background(), "+5533999999999",
			userMessage("msg", fmt.Sprintf("intent_%d", i), ""))
	}

	want := []string{"intent_7", "intent_6", "intent_5", "intent_4", "intent_3"}
	if len(c.RecentIntents) != len(want) {
		t.Fatalf("expected %d intents, got %d", len(want), len(c.RecentIntents))
	}
	for i, intent := range want {
		if c.RecentIntents[i] != intent {
			t.Errorf("intents[%d] = %s, want %s", i, c.RecentIntents[i], intent)
		}
	}
}

func TestAddMessageIntentsNotDeduplicated(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	var c *models.ConversationContext
	for i := 0; i < 3; i++ {
		c = memory.AddMessage(context.Background(), "+5533999999999",
			userMessage("again", "billing_inquiry", ""))
	}

	if len(c.RecentIntents) != 3 {
		t.Errorf("expected repeated intents kept, got %v", c.RecentIntents)
	}
}

func TestDominantSentimentStrictMajority(t *testing.T) {
	tests := []struct {
		name       string
		sentiments []string
		want       string
	}{
		{"clear positive majority", []string{models.SentimentPositive, models.SentimentPositive, models.SentimentNegative}, models.SentimentPositive},
		{"three-way tie", []string{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral}, models.SentimentNeutral},
		{"two-way tie at top", []string{models.SentimentPositive, models.SentimentPositive, models.SentimentNegative, models.SentimentNegative, models.SentimentNeutral}, models.SentimentNeutral},
		{"no tagged messages", []string{"", "", ""}, models.SentimentNeutral},
		{"untagged ignored", []string{"", models.SentimentNegative, ""}, models.SentimentNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := newTestMemory(t, nil, testCacheConfig())
			var c *models.ConversationContext
			for _, sentiment := range tt.sentiments {
				c = memory.AddMessage(context.Background(), "+5533999999999",
					userMessage("msg", "", sentiment))
			}
			if c.DominantSentiment != tt.want {
				t.Errorf("DominantSentiment = %s, want %s", c.DominantSentiment, tt.want)
			}
		})
	}
}

func TestSummaryIsWrittenOnceAtThreshold(t *testing.T) {
	config := testCacheConfig()
	config.SummaryThreshold = 3
	memory := newTestMemory(t, nil, config)

	c := memory.AddMessage(context.Background(), "+5533999999999", userMessage("one", "plan_inquiry", ""))
	if c.Summary != "" {
		t.Fatal("expected no summary below the threshold")
	}
	memory.AddMessage(context.Background(), "+5533999999999", userMessage("two", "", ""))
	c = memory.AddMessage(context.Background(), "+5533999999999", userMessage("three", "billing_inquiry", ""))

	if c.Summary == "" {
		t.Fatal("expected a summary at the threshold")
	}
	if c.SummaryUpdatedAt == nil {
		t.Error("expected the summary timestamp set")
	}
	firstSummary := c.Summary

	c = memory.AddMessage(context.Background(), "+5533999999999", userMessage("four", "cancel_request", ""))
	if c.Summary != firstSummary {
		t.Error("summary must not be regenerated after the first write")
	}
}

func TestEscalationMetadataIsSticky(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	c := memory.AddMessage(context.Background(), "+5533999999999", models.Message{
		Role:     models.RoleUser,
		Content:  "I want a manager",
		Intent:   "escalation_request",
		Metadata: &models.MessageMetadata{Escalated: true},
	})
	if !c.NeedsEscalation {
		t.Fatal("expected escalation flag set")
	}
	if c.ConversationState != models.StateEscalation {
		t.Fatalf("expected escalation state, got %s", c.ConversationState)
	}

	// The state can move on but the flag stays
	c = memory.AddMessage(context.Background(), "+5533999999999", userMessage("thanks, resolved", "issue_resolved", ""))
	if c.ConversationState != models.StateResolution {
		t.Errorf("expected resolution state, got %s", c.ConversationState)
	}
	if !c.NeedsEscalation {
		t.Error("escalation flag must stay set for the handoff")
	}
}

func TestExecutedCommandsAccumulate(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	memory.AddMessage(context.Background(), "+5533999999999", models.Message{
		Role: models.RoleAssistant, Content: "done",
		Metadata: &models.MessageMetadata{CommandExecuted: "check_invoice"},
	})
	c := memory.AddMessage(context.Background(), "+5533999999999", models.Message{
		Role: models.RoleAssistant, Content: "done again",
		Metadata: &models.MessageMetadata{CommandExecuted: "reset_password"},
	})

	if len(c.ExecutedCommands) != 2 || c.ExecutedCommands[1] != "reset_password" {
		t.Errorf("unexpected executed commands: %v", c.ExecutedCommands)
	}
}

func TestWriteThroughPersistsAggregateAndInteraction(t *testing.T) {
	store := newFakeConversationStore()
	memory := newTestMemory(t, store, testCacheConfig())

	memory.AddMessage(context.Background(), "+5533999999999",
		userMessage("my plan", "plan_inquiry", models.SentimentNeutral))

	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 aggregate upsert, got %d", len(store.upserts))
	}
	if store.upserts[0].LastIntent != "plan_inquiry" {
		t.Errorf("unexpected upserted intent: %s", store.upserts[0].LastIntent)
	}
	if len(store.interactions) != 1 {
		t.Fatalf("expected 1 interaction row, got %d", len(store.interactions))
	}
	if store.interactions[0].Content != "my plan" {
		t.Errorf("unexpected interaction content: %s", store.interactions[0].Content)
	}
}

func TestSystemMessagesAreNotPersisted(t *testing.T) {
	store := newFakeConversationStore()
	memory := newTestMemory(t, store, testCacheConfig())

	c := memory.AddMessage(context.Background(), "+5533999999999", models.Message{
		Role: models.RoleSystem, Content: "internal note",
	})

	if len(c.Messages) != 1 {
		t.Fatal("system message must still land in the context")
	}
	if len(store.interactions) != 0 || len(store.upserts) != 0 {
		t.Error("system messages must not be written through")
	}
}

func TestPersistenceFailureDoesNotRollBack(t *testing.T) {
	store := newFakeConversationStore()
	store.upsertErr = errors.New("deadlock")
	store.appendErr = errors.New("deadlock")
	memory := newTestMemory(t, store, testCacheConfig())

	c := memory.AddMessage(context.Background(), "+5533999999999", userMessage("hello", "", ""))

	if len(c.Messages) != 1 || c.TotalMessages != 1 {
		t.Error("in-memory update must survive a durable write failure")
	}
}

func TestGetFormattedHistory(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	for i := 0; i < 15; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		memory.AddMessage(context.Background(), "+5533999999999", models.Message{
			Role: role, Content: fmt.Sprintf("message %d", i),
		})
	}

	history := memory.GetFormattedHistory(context.Background(), "+5533999999999", 0)
	if len(history) != 10 {
		t.Fatalf("expected default limit of 10, got %d", len(history))
	}
	if history[0].Content != "message 5" || history[9].Content != "message 14" {
		t.Errorf("expected chronological tail, got first=%q last=%q",
			history[0].Content, history[9].Content)
	}

	short := memory.GetFormattedHistory(context.Background(), "+5533999999999", 3)
	if len(short) != 3 || short[2].Content != "message 14" {
		t.Errorf("unexpected limited history: %+v", short)
	}
}

func TestGetConversationSummaryFallback(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	if got := memory.GetConversationSummary(context.Background(), "+5533999999999"); got != "No conversation history yet." {
		t.Errorf("unexpected empty-history summary: %q", got)
	}

	memory.AddMessage(context.Background(), "+5533999999999", userMessage("hello", "greeting", ""))
	memory.AddMessage(context.Background(), "+5533999999999", userMessage("my invoice", "billing_inquiry", ""))

	summary := memory.GetConversationSummary(context.Background(), "+5533999999999")
	if !strings.Contains(summary, "2 messages") {
		t.Errorf("expected message count in fallback summary, got %q", summary)
	}
	if !strings.Contains(summary, "greeting") || !strings.Contains(summary, "billing_inquiry") {
		t.Errorf("expected intents in fallback summary, got %q", summary)
	}
}

func TestGetTopicsStoresOnContext(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	memory.AddMessage(context.Background(), "+5533999999999", userMessage("internet speed problem", "", ""))
	memory.AddMessage(context.Background(), "+5533999999999", userMessage("internet keeps dropping", "", ""))

	topics := memory.GetTopics(context.Background(), "+5533999999999")
	if len(topics) == 0 || topics[0] != "internet" {
		t.Errorf("expected internet as the top topic, got %v", topics)
	}

	c := memory.GetContext(context.Background(), "+5533999999999", "")
	if len(c.Topics) == 0 {
		t.Error("expected topics recorded on the context")
	}
}

func TestGetTopicsConcurrentWithIngestion(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())
	phone := "+5533999999999"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			memory.AddMessage(context.Background(), phone,
				userMessage(fmt.Sprintf("internet problem %d", i), "technical_complaint", ""))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			memory.GetTopics(context.Background(), phone)
		}
	}()
	wg.Wait()

	c := memory.GetContext(context.Background(), phone, "")
	if c.TotalMessages != 40 {
		t.Errorf("expected 40 ingested messages, got %d", c.TotalMessages)
	}
	topics := memory.GetTopics(context.Background(), phone)
	if len(topics) == 0 || topics[0] != "internet" {
		t.Errorf("expected internet as the top topic, got %v", topics)
	}
}

func TestClearContextDropsCachedState(t *testing.T) {
	memory := newTestMemory(t, nil, testCacheConfig())

	memory.AddMessage(context.Background(), "+5533999999999", userMessage("hello", "", ""))
	memory.ClearContext("+5533999999999")

	c := memory.GetContext(context.Background(), "+5533999999999", "")
	if len(c.Messages) != 0 {
		t.Error("expected a fresh context after clear")
	}
}

func TestSupportConversationScenario(t *testing.T) {
	config := testCacheConfig()
	config.SummaryThreshold = 4
	store := newFakeConversationStore()
	memory := newTestMemory(t, store, config)
	phone := "+5533999999999"

	memory.AddMessage(context.Background(), phone, userMessage("oi, bom dia", "greeting", models.SentimentNeutral))
	memory.AddMessage(context.Background(), phone, models.Message{Role: models.RoleAssistant, Content: "Olá! Como posso ajudar?"})
	memory.AddMessage(context.Background(), phone, userMessage("minha internet não funciona", "technical_complaint", models.SentimentNegative))
	c := memory.AddMessage(context.Background(), phone, models.Message{
		Role: models.RoleAssistant, Content: "Reiniciei seu modem remotamente",
		Metadata: &models.MessageMetadata{CommandExecuted: "restart_modem"},
	})

	if c.ConversationState != models.StateSupport {
		t.Errorf("expected support state after a complaint, got %s", c.ConversationState)
	}
	if c.Summary == "" {
		t.Error("expected summary at threshold")
	}
	if c.TotalMessages != 4 {
		t.Errorf("expected 4 total messages, got %d", c.TotalMessages)
	}

	c = memory.AddMessage(context.Background(), phone, userMessage("funcionou, obrigado!", "issue_resolved_thanks", models.SentimentPositive))
	if c.ConversationState != models.StateResolution {
		t.Errorf("expected resolution state, got %s", c.ConversationState)
	}

	// The problem comes back and the customer demands a human
	memory.AddMessage(context.Background(), phone, userMessage("caiu de novo, que absurdo", "complaint", models.SentimentNegative))
	c = memory.AddMessage(context.Background(), phone, userMessage("quero falar com um atendente", "escalation_required", models.SentimentNegative))

	if c.ConversationState != models.StateEscalation {
		t.Errorf("expected escalation state, got %s", c.ConversationState)
	}
	if !c.NeedsEscalation {
		t.Error("expected escalation flag set for the handoff")
	}
	if len(c.RecentIntents) < 2 || c.RecentIntents[0] != "escalation_required" || c.RecentIntents[1] != "complaint" {
		t.Errorf("unexpected recent intents: %v", c.RecentIntents)
	}
	if len(store.interactions) != 7 {
		t.Errorf("expected 7 persisted interactions, got %d", len(store.interactions))
	}

	stats := memory.GetCacheStats()
	if stats.Size != 1 {
		t.Errorf("expected 1 cached context, got %d", stats.Size)
	}
}
