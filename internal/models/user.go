package models

import "time"

// Subscription status constants
const (
	SubStatusActive    = "ACTIVE"
	SubStatusOverdue   = "OVERDUE"
	SubStatusPaused    = "PAUSED"
	SubStatusCancelled = "CANCELLED"
)

// Support ticket status constants
const (
	TicketStatusOpen       = "OPEN"
	TicketStatusInProgress = "IN_PROGRESS"
	TicketStatusResolved   = "RESOLVED"
	TicketStatusClosed     = "CLOSED"
)

// User is a customer account resolved from the user directory
type User struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Email       string     `bson:"email,omitempty" json:"email,omitempty"`
	Phone       string     `bson:"phone" json:"phone"`
	WhatsApp    string     `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"created_at"`
	LastLoginAt *time.Time `bson:"lastLoginAt,omitempty" json:"last_login_at,omitempty"`
}

// Subscription tracks a customer's subscription state
type Subscription struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	UserID       string    `bson:"userId" json:"user_id"`
	PlanName     string    `bson:"planName" json:"plan_name"`
	Status       string    `bson:"status" json:"status"`
	MonthlyValue float64   `bson:"monthlyValue" json:"monthly_value"`
	StartedAt    time.Time `bson:"startedAt" json:"started_at"`
	RenewalDate  time.Time `bson:"renewalDate" json:"renewal_date"`
}

// AgeDays returns how many whole days the subscription has existed
func (s *Subscription) AgeDays(now time.Time) int {
	return int(now.Sub(s.StartedAt).Hours() / 24)
}

// SupportTicket is one ticket from the support-history query service
type SupportTicket struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	UserID     string     `bson:"userId" json:"user_id"`
	Category   string     `bson:"category,omitempty" json:"category,omitempty"`
	Status     string     `bson:"status" json:"status"`
	CreatedAt  time.Time  `bson:"createdAt" json:"created_at"`
	ResolvedAt *time.Time `bson:"resolvedAt,omitempty" json:"resolved_at,omitempty"`
}

// Session is an active customer session from the session store
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	Channel   string    `json:"channel,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// IsExpired reports whether the session has passed its expiry
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}
