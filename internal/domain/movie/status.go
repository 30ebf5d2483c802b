package movie

import "strings"

// Status is the moderation state of a comment.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Reviewed() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, true
		}
	}
	return "", false
}

// CanTransition reports whether the moderation graph allows from -> to.
// Pending may move to Approved or Rejected; a reviewed comment may only go back to Pending.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved, StatusRejected:
		return to == StatusPending
	}
	return false
}
