package services

import (
	"testing"

	"atendai/internal/models"
)

func msgs(contents ...string) []models.Message {
	messages := make([]models.Message, 0, len(contents))
	for _, content := range contents {
		messages = append(messages, models.Message{Role: models.RoleUser, Content: content})
	}
	return messages
}

func TestExtractTopicsRanksByFrequency(t *testing.T) {
	extractor := NewFrequencyTopicExtractor()

	topics := extractor.ExtractTopics(msgs(
		"internet speed problem",
		"internet keeps dropping",
		"speed test shows slow internet",
	), 3)

	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %v", topics)
	}
	if topics[0] != "internet" {
		t.Errorf("expected internet first (3 occurrences), got %v", topics)
	}
	if topics[1] != "speed" {
		t.Errorf("expected speed second (2 occurrences), got %v", topics)
	}
}

func TestExtractTopicsSkipsShortAndStopWords(t *testing.T) {
	extractor := NewFrequencyTopicExtractor()

	topics := extractor.ExtractTopics(msgs("please help with my wifi now"), 5)

	for _, topic := range topics {
		if topic == "please" {
			t.Error("stop words must be filtered")
		}
		if len(topic) < 4 {
			t.Errorf("short token %q must be filtered", topic)
		}
	}
}

func TestExtractTopicsTieBreaksByFirstOccurrence(t *testing.T) {
	extractor := NewFrequencyTopicExtractor()

	topics := extractor.ExtractTopics(msgs("router modem", "cable router modem cable"), 4)

	// All appear twice except nothing; router seen first
	if len(topics) < 2 || topics[0] != "router" {
		t.Errorf("expected router first on tie, got %v", topics)
	}
}

func TestExtractTopicsEmptyAndLimit(t *testing.T) {
	extractor := NewFrequencyTopicExtractor()

	if topics := extractor.ExtractTopics(nil, 5); len(topics) != 0 {
		t.Errorf("expected no topics for no messages, got %v", topics)
	}

	topics := extractor.ExtractTopics(msgs("alpha beta gamma delta epsilon zeta"), 2)
	if len(topics) != 2 {
		t.Errorf("expected limit of 2 topics, got %v", topics)
	}
}
