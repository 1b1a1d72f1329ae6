package journal

import (
	"strings"
	"time"
)

// Status represents how far a webhook delivery progressed.
type Status string

const (
	// StatusReceived is set when the payload passes validation.
	StatusReceived Status = "received"
	// StatusWritten is set after the transcript file lands in the inbox.
	StatusWritten Status = "written"
	// StatusCommitted is set after the local commit succeeds.
	StatusCommitted Status = "committed"
	// StatusPushed is the terminal success state.
	StatusPushed Status = "pushed"
	// StatusPushPending marks a committed delivery whose push was
	// deferred by a conflict. Startup recovery retries these.
	StatusPushPending Status = "push_pending"
	// StatusRejected marks a delivery that failed validation.
	StatusRejected Status = "rejected"
	// StatusFailed marks a delivery that failed after validation.
	StatusFailed Status = "failed"
)

var allStatuses = []Status{
	StatusReceived,
	StatusWritten,
	StatusCommitted,
	StatusPushed,
	StatusPushPending,
	StatusRejected,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a delivery in this status will not change again
// without operator or recovery intervention.
func (s Status) Terminal() bool {
	switch s {
	case StatusPushed, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// Delivery is one webhook delivery persisted in SQLite.
type Delivery struct {
	ID           string
	Title        string
	Filename     string
	Status       Status
	Revision     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary aggregates delivery counts per lifecycle state.
type Summary struct {
	Total       int
	Pushed      int
	PushPending int
	Rejected    int
	Failed      int
	InFlight    int
}
