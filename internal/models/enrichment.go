package models

import "time"

// Enrichment depth levels
const (
	DepthMinimal  = "minimal"
	DepthStandard = "standard"
	DepthDeep     = "deep"
)

// Risk levels derived by behavior analysis
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// EnrichmentOptions controls which sections the enrichment engine fetches.
// All sections default to enabled with standard depth.
type EnrichmentOptions struct {
	IncludeSubscription     bool   `json:"include_subscription"`
	IncludeSupportHistory   bool   `json:"include_support_history"`
	IncludeBehaviorAnalysis bool   `json:"include_behavior_analysis"`
	IncludeSessionData      bool   `json:"include_session_data"`
	Depth                   string `json:"depth"`
}

// DefaultEnrichmentOptions returns the default options (everything on)
func DefaultEnrichmentOptions() EnrichmentOptions {
	return EnrichmentOptions{
		IncludeSubscription:     true,
		IncludeSupportHistory:   true,
		IncludeBehaviorAnalysis: true,
		IncludeSessionData:      true,
		Depth:                   DepthStandard,
	}
}

// SubscriptionInfo is the enriched subscription section
type SubscriptionInfo struct {
	PlanName         string    `json:"plan_name"`
	Status           string    `json:"status"`
	MonthlyValue     float64   `json:"monthly_value"`
	RenewalDate      time.Time `json:"renewal_date"`
	DaysUntilRenewal int       `json:"days_until_renewal"`
	IsOverdue        bool      `json:"is_overdue"`
	AgeDays          int       `json:"age_days"`
}

// SupportHistoryInfo aggregates the customer's ticket history.
// Absent history yields all-zero defaults, never an error.
type SupportHistoryInfo struct {
	TotalTickets           int      `json:"total_tickets"`
	OpenTickets            int      `json:"open_tickets"`
	ResolvedTickets        int      `json:"resolved_tickets"`
	AverageResolutionHours float64  `json:"average_resolution_hours"`
	RecentTicketCategories []string `json:"recent_ticket_categories"`
}

// BehaviorAnalysis holds the derived behavioral scoring section
type BehaviorAnalysis struct {
	RecentInteractions int    `json:"recent_interactions"` // within the last 30 days
	EngagementScore    int    `json:"engagement_score"`    // 0..100
	IsFrequentUser     bool   `json:"is_frequent_user"`
	IsHighValue        bool   `json:"is_high_value"`
	RiskLevel          string `json:"risk_level"`
}

// ContextFlags is the quick-access flags block for the response generator
type ContextFlags struct {
	IsFirstTimeUser       bool `json:"is_first_time_user"`
	HasActiveSubscription bool `json:"has_active_subscription"`
	HasOverduePayment     bool `json:"has_overdue_payment"`
	HasRecentComplaint    bool `json:"has_recent_complaint"`
	NeedsAttention        bool `json:"needs_attention"`
	IsVIP                 bool `json:"is_vip"`
}

// EnrichmentMetadata records how the enriched context was produced
type EnrichmentMetadata struct {
	EnrichedAt     time.Time `json:"enriched_at"`
	Depth          string    `json:"depth"`
	FailedSections []string  `json:"failed_sections,omitempty"`
}

// EnrichedContext is the ephemeral, request-scoped composition of conversation
// memory with account, subscription, support and behavioral data. It is never
// cached or persisted; every enrichment request recomputes it.
type EnrichedContext struct {
	Conversation   *ConversationContext `json:"conversation"`
	User           *User                `json:"user,omitempty"`
	Subscription   *SubscriptionInfo    `json:"subscription,omitempty"`
	SupportHistory *SupportHistoryInfo  `json:"support_history,omitempty"`
	Behavior       *BehaviorAnalysis    `json:"behavior,omitempty"`
	Session        *Session             `json:"session,omitempty"`
	Flags          ContextFlags         `json:"flags"`
	Metadata       EnrichmentMetadata   `json:"metadata"`
}
