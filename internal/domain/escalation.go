package domain

// Escalation chain levels, ordered by who gets pulled in first.
const (
	EscalationLevelReviewer = 1
	EscalationLevelOwner    = 2
	EscalationLevelAdmins   = 3
)

// EscalationChainEntry is one notification target in a challenge's
// escalation chain. Derived on every read, never persisted.
type EscalationChainEntry struct {
	Level  int      `json:"level"`
	Role   string   `json:"role"`
	Emails []string `json:"emails"`
}
