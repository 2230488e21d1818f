package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"atendai/internal/models"
)

// Enrichment query limits
const (
	ticketQueryLimit        = 50
	interactionQueryLimit   = 100
	recentTicketWindow      = 10
	recentInteractionWindow = 10
	recentActivityDays      = 30

	frequentUserThreshold = 10
	highValueAgeDays      = 180
	vipAgeDays            = 365
	vipMonthlyValue       = 200.0
)

// ContextEnrichmentService composes a ConversationContext with account,
// subscription, support-history and behavioral data into one EnrichedContext.
// Every collaborator fetch is bounded by a timeout and degrades to empty
// defaults on failure; the enrichment call itself never fails.
type ContextEnrichmentService struct {
	memory        *ConversationMemoryService
	users         UserDirectory
	subscriptions SubscriptionQuery
	tickets       TicketQuery
	interactions  InteractionQuery
	sessions      SessionStore
	metrics       *Metrics

	fetchTimeout time.Duration
}

// NewContextEnrichmentService creates the enrichment engine. Any collaborator
// may be nil; its section then degrades to defaults.
func NewContextEnrichmentService(
	memory *ConversationMemoryService,
	users UserDirectory,
	subscriptions SubscriptionQuery,
	tickets TicketQuery,
	interactions InteractionQuery,
	sessions SessionStore,
	fetchTimeout time.Duration,
	metrics *Metrics,
) *ContextEnrichmentService {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &ContextEnrichmentService{
		memory:        memory,
		users:         users,
		subscriptions: subscriptions,
		tickets:       tickets,
		interactions:  interactions,
		sessions:      sessions,
		metrics:       metrics,
		fetchTimeout:  fetchTimeout,
	}
}

// GetEnrichedContext builds the request-scoped enriched context for a
// customer. Partial-data failures are logged and substituted with defaults.
func (s *ContextEnrichmentService) GetEnrichedContext(ctx context.Context, phone, userID string, opts *models.EnrichmentOptions) *models.EnrichedContext {
	start := time.Now()
	options := models.DefaultEnrichmentOptions()
	if opts != nil {
		options = *opts
	}
	if options.Depth == "" {
		options.Depth = models.DepthStandard
	}

	enriched := &models.EnrichedContext{
		Conversation: s.memory.GetContext(ctx, phone, userID),
		Metadata: models.EnrichmentMetadata{
			EnrichedAt: time.Now(),
			Depth:      options.Depth,
		},
	}

	user := s.fetchUser(ctx, enriched, phone, userID)
	accountID := ""
	if user != nil {
		accountID = user.ID
	}

	if user != nil && options.IncludeSubscription {
		s.fetchSubscription(ctx, enriched, accountID)
	}
	// History and behavior always materialize with zero-value defaults,
	// resolved account or not; the backing queries need an account id.
	if options.IncludeSupportHistory {
		s.fetchSupportHistory(ctx, enriched, accountID)
	}
	if options.IncludeBehaviorAnalysis {
		s.fetchBehavior(ctx, enriched, accountID)
	}
	if user != nil && options.IncludeSessionData {
		s.fetchSession(ctx, enriched, accountID, phone)
	}

	enriched.Flags = s.buildFlags(enriched)

	s.metrics.RecordEnrichment(time.Since(start).Seconds())
	return enriched
}

// fetchUser resolves the customer account; absence is not an error
func (s *ContextEnrichmentService) fetchUser(ctx context.Context, enriched *models.EnrichedContext, phone, userID string) *models.User {
	if s.users == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	user, err := s.users.FindUser(fetchCtx, phone, userID)
	if err != nil {
		s.degrade(enriched, "user", err)
		return nil
	}
	enriched.User = user
	return user
}

// fetchSubscription resolves the most recent ACTIVE/OVERDUE/PAUSED subscription
func (s *ContextEnrichmentService) fetchSubscription(ctx context.Context, enriched *models.EnrichedContext, userID string) {
	if s.subscriptions == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	sub, err := s.subscriptions.FindCurrentSubscription(fetchCtx, userID)
	if err != nil {
		s.degrade(enriched, "subscription", err)
		return
	}
	if sub == nil {
		return
	}

	now := time.Now()
	enriched.Subscription = &models.SubscriptionInfo{
		PlanName:         sub.PlanName,
		Status:           sub.Status,
		MonthlyValue:     sub.MonthlyValue,
		RenewalDate:      sub.RenewalDate,
		DaysUntilRenewal: int(math.Ceil(sub.RenewalDate.Sub(now).Hours() / 24)),
		IsOverdue:        sub.Status == models.SubStatusOverdue,
		AgeDays:          sub.AgeDays(now),
	}
}

// fetchSupportHistory aggregates up to the 50 most recent tickets.
// Absent history yields all-zero defaults.
func (s *ContextEnrichmentService) fetchSupportHistory(ctx context.Context, enriched *models.EnrichedContext, userID string) {
	history := &models.SupportHistoryInfo{RecentTicketCategories: []string{}}
	enriched.SupportHistory = history

	if s.tickets == nil || userID == "" {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	tickets, err := s.tickets.ListTickets(fetchCtx, userID, ticketQueryLimit)
	if err != nil {
		s.degrade(enriched, "support_history", err)
		return
	}

	history.TotalTickets = len(tickets)

	var totalResolutionHours float64
	resolvedWithTime := 0
	for _, ticket := range tickets {
		switch ticket.Status {
		case models.TicketStatusOpen, models.TicketStatusInProgress:
			history.OpenTickets++
		case models.TicketStatusResolved, models.TicketStatusClosed:
			history.ResolvedTickets++
		}
		if ticket.ResolvedAt != nil {
			totalResolutionHours += ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours()
			resolvedWithTime++
		}
	}
	if resolvedWithTime > 0 {
		history.AverageResolutionHours = totalResolutionHours / float64(resolvedWithTime)
	}

	// De-duplicated categories of the most recent tickets (newest first)
	seen := make(map[string]struct{})
	for i, ticket := range tickets {
		if i >= recentTicketWindow {
			break
		}
		if ticket.Category == "" {
			continue
		}
		if _, dup := seen[ticket.Category]; dup {
			continue
		}
		seen[ticket.Category] = struct{}{}
		history.RecentTicketCategories = append(history.RecentTicketCategories, ticket.Category)
	}
}

// fetchBehavior derives the behavioral scoring section from the interaction log
func (s *ContextEnrichmentService) fetchBehavior(ctx context.Context, enriched *models.EnrichedContext, userID string) {
	behavior := &models.BehaviorAnalysis{RiskLevel: models.RiskLow}
	enriched.Behavior = behavior

	var interactions []models.InteractionRecord
	if s.interactions != nil && userID != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		var err error
		interactions, err = s.interactions.ListInteractions(fetchCtx, userID, interactionQueryLimit)
		if err != nil {
			s.degrade(enriched, "behavior", err)
			interactions = nil
		}
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, -recentActivityDays)
	for _, record := range interactions {
		if record.Timestamp.After(cutoff) {
			behavior.RecentInteractions++
		}
	}

	conv := enriched.Conversation
	behavior.EngagementScore = EngagementScore(behavior.RecentInteractions, len(conv.ExecutedCommands), conv.TotalMessages)
	behavior.IsFrequentUser = behavior.RecentInteractions >= frequentUserThreshold

	if sub := enriched.Subscription; sub != nil &&
		sub.Status == models.SubStatusActive && sub.AgeDays > highValueAgeDays {
		behavior.IsHighValue = true
	}

	behavior.RiskLevel = riskLevelOf(interactions, conv.NeedsEscalation)
}

// fetchSession resolves the most recent live session for the customer
func (s *ContextEnrichmentService) fetchSession(ctx context.Context, enriched *models.EnrichedContext, userID, phone string) {
	if s.sessions == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	session, err := s.sessions.FindActiveSession(fetchCtx, userID, phone)
	if err != nil {
		s.degrade(enriched, "session", err)
		return
	}
	enriched.Session = session
}

// buildFlags derives the quick-access flags block
func (s *ContextEnrichmentService) buildFlags(enriched *models.EnrichedContext) models.ContextFlags {
	conv := enriched.Conversation
	sub := enriched.Subscription

	flags := models.ContextFlags{
		IsFirstTimeUser: enriched.User == nil || conv.IsFirstInteraction,
	}

	if sub != nil {
		flags.HasActiveSubscription = sub.Status == models.SubStatusActive
		flags.HasOverduePayment = sub.IsOverdue
		flags.IsVIP = sub.MonthlyValue > vipMonthlyValue || sub.AgeDays > vipAgeDays
	}

	for _, intent := range conv.RecentIntents {
		if strings.Contains(strings.ToLower(intent), "complaint") {
			flags.HasRecentComplaint = true
			break
		}
	}

	openTickets := 0
	if enriched.SupportHistory != nil {
		openTickets = enriched.SupportHistory.OpenTickets
	}
	flags.NeedsAttention = conv.NeedsEscalation || openTickets > 0

	return flags
}

// degrade records a failed enrichment section; the call continues with defaults
func (s *ContextEnrichmentService) degrade(enriched *models.EnrichedContext, section string, err error) {
	enriched.Metadata.FailedSections = append(enriched.Metadata.FailedSections, section)
	s.metrics.RecordEnrichmentSectionFailure(section)
	log.Printf("⚠️ [ENRICHMENT] Section %q degraded to defaults: %v", section, err)
}

// EngagementScore computes the deterministic engagement score, clamped to
// [0,100]: recent interactions weigh 10, executed commands 5, total messages 2.
func EngagementScore(recentInteractions, executedCommands, totalMessages int) int {
	score := recentInteractions*10 + executedCommands*5 + totalMessages*2
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// riskLevelOf derives the risk label: a complaint in the most recent
// interactions is high; an escalation-flagged conversation is medium.
func riskLevelOf(interactions []models.InteractionRecord, needsEscalation bool) string {
	for i, record := range interactions {
		if i >= recentInteractionWindow {
			break
		}
		if strings.Contains(strings.ToLower(record.Intent), "complaint") {
			return models.RiskHigh
		}
	}
	if needsEscalation {
		return models.RiskMedium
	}
	return models.RiskLow
}

// GenerateLLMContext renders the enriched context into a fixed-order,
// line-per-fact plain-text synopsis for prompt consumption. The line order
// is load-bearing for downstream prompt stability; do not reorder.
func GenerateLLMContext(enriched *models.EnrichedContext) string {
	var b strings.Builder
	conv := enriched.Conversation

	name := conv.CustomerName
	if enriched.User != nil && enriched.User.Name != "" {
		name = enriched.User.Name
	}
	if name == "" {
		name = "Unknown customer"
	}
	fmt.Fprintf(&b, "Customer: %s (%s)\n", name, conv.CustomerPhone)

	if sub := enriched.Subscription; sub != nil {
		fmt.Fprintf(&b, "Subscription: %s (%s), renews in %d days\n",
			sub.PlanName, sub.Status, sub.DaysUntilRenewal)
	}

	if history := enriched.SupportHistory; history != nil {
		fmt.Fprintf(&b, "Support tickets: %d total, %d open\n",
			history.TotalTickets, history.OpenTickets)
	}

	if behavior := enriched.Behavior; behavior != nil {
		if behavior.IsFrequentUser {
			b.WriteString("Frequent user\n")
		}
		if behavior.IsHighValue {
			b.WriteString("High-value customer\n")
		}
	}

	if enriched.Flags.IsVIP {
		b.WriteString("VIP customer\n")
	}
	if enriched.Flags.HasOverduePayment {
		b.WriteString("Payment overdue\n")
	}
	if enriched.Flags.NeedsAttention {
		b.WriteString("Needs attention\n")
	}

	fmt.Fprintf(&b, "Conversation state: %s\n", conv.ConversationState)
	fmt.Fprintf(&b, "Dominant sentiment: %s\n", conv.DominantSentiment)

	if conv.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", conv.Summary)
	}

	return b.String()
}
