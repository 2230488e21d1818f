package services

import (
	"strings"
	"unicode"

	"atendai/internal/models"
)

// TopicExtractor derives conversation topics from the held messages.
// The default implementation is naive frequency counting; a stronger
// extractor can be substituted without changing the core's contract.
type TopicExtractor interface {
	ExtractTopics(messages []models.Message, limit int) []string
}

// DefaultTopicLimit is the number of topics kept on a context
const DefaultTopicLimit = 5

// minTokenLength: tokens this short carry no topical signal
const minTokenLength = 4

// stopWords covers the common English and Portuguese filler words seen in
// support conversations
var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "have": {}, "from": {}, "what": {},
	"your": {}, "about": {}, "would": {}, "there": {}, "their": {}, "will": {},
	"just": {}, "like": {}, "want": {}, "need": {}, "please": {}, "hello": {},
	"para": {}, "como": {}, "quero": {}, "essa": {}, "esse": {}, "esta": {},
	"este": {}, "meus": {}, "minha": {}, "pode": {}, "fazer": {}, "preciso": {},
	"obrigado": {}, "obrigada": {}, "bom": {}, "dia": {},
}

// FrequencyTopicExtractor counts token frequency across all held messages
// and returns the most frequent tokens, ties broken by first occurrence.
type FrequencyTopicExtractor struct{}

// NewFrequencyTopicExtractor creates the default topic extractor
func NewFrequencyTopicExtractor() *FrequencyTopicExtractor {
	return &FrequencyTopicExtractor{}
}

// ExtractTopics returns the top tokens by descending frequency
func (e *FrequencyTopicExtractor) ExtractTopics(messages []models.Message, limit int) []string {
	if limit <= 0 {
		limit = DefaultTopicLimit
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, msg := range messages {
		tokens := strings.FieldsFunc(strings.ToLower(msg.Content), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		for _, token := range tokens {
			if len(token) < minTokenLength {
				continue
			}
			if _, stopped := stopWords[token]; stopped {
				continue
			}
			if _, seen := counts[token]; !seen {
				firstSeen[token] = order
				order++
			}
			counts[token]++
		}
	}

	ranked := make([]string, 0, len(counts))
	for token := range counts {
		ranked = append(ranked, token)
	}

	// Descending frequency, ties by order of first occurrence
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			a, b := ranked[i], ranked[j]
			if counts[b] > counts[a] || (counts[b] == counts[a] && firstSeen[b] < firstSeen[a]) {
				ranked[i], ranked[j] = ranked[j], ranked[i]
			}
		}
	}

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
