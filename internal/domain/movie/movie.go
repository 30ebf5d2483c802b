// Package movie holds the catalog aggregate and the comment moderation state machine.
package movie

import (
	"fmt"
	"strings"
	"time"

	"cinecritic/internal/events"
	cinecritic_errors "cinecritic/pkg/errors"

	"github.com/google/uuid"
)

// Movie is the aggregate root. Every comment mutation goes through it, and each
// mutation that other parts of the system care about queues a domain event.
//
// A Movie is not safe for concurrent mutation; callers load a fresh instance
// per transaction.
type Movie struct {
	ID          uuid.UUID
	Title       string
	Description string
	Genre       string
	ReleaseYear int
	CreatedAt   time.Time

	comments []*Comment
	pending  []events.DomainEvent
	clock    func() time.Time
}

// NewMovie creates a catalog entry and queues MovieCreated.
func NewMovie(title, description, genre string, releaseYear int) (*Movie, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", cinecritic_errors.ErrValidation)
	}
	m := &Movie{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Genre:       genre,
		ReleaseYear: releaseYear,
		clock:       time.Now,
	}
	m.CreatedAt = m.now()
	m.record(events.MovieCreated{MovieID: m.ID, Title: m.Title, At: m.CreatedAt})
	return m, nil
}

// Rehydrate rebuilds a stored movie. No events are queued.
func Rehydrate(id uuid.UUID, title, description, genre string, releaseYear int, createdAt time.Time, comments []Comment) *Movie {
	m := &Movie{
		ID:          id,
		Title:       title,
		Description: description,
		Genre:       genre,
		ReleaseYear: releaseYear,
		CreatedAt:   createdAt,
		clock:       time.Now,
	}
	for i := range comments {
		c := comments[i].clone()
		m.comments = append(m.comments, &c)
	}
	return m
}

// WithClock overrides the time source used for review and creation timestamps.
func (m *Movie) WithClock(clock func() time.Time) *Movie {
	m.clock = clock
	return m
}

// MarkDeleted queues MovieDeleted. Removing the row is the repository's job.
func (m *Movie) MarkDeleted() {
	m.record(events.MovieDeleted{MovieID: m.ID, Title: m.Title, At: m.now()})
}

// AddComment appends a pending comment and queues CommentCreated.
func (m *Movie) AddComment(authorID, text string) (Comment, error) {
	if err := validateCommentInput(authorID, text); err != nil {
		return Comment{}, err
	}
	c := &Comment{
		ID:        uuid.New(),
		MovieID:   m.ID,
		AuthorID:  strings.TrimSpace(authorID),
		Text:      text,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}
	m.comments = append(m.comments, c)
	m.record(events.CommentCreated{
		MovieID:    m.ID,
		MovieTitle: m.Title,
		CommentID:  c.ID,
		AuthorID:   c.AuthorID,
		Text:       c.Text,
		At:         c.CreatedAt,
	})
	return c.clone(), nil
}

// Approve moves a pending comment to Approved.
func (m *Movie) Approve(commentID uuid.UUID, reviewerID string) (Comment, error) {
	return m.review(commentID, reviewerID, StatusApproved)
}

// Reject moves a pending comment to Rejected.
func (m *Movie) Reject(commentID uuid.UUID, reviewerID string) (Comment, error) {
	return m.review(commentID, reviewerID, StatusRejected)
}

func (m *Movie) review(commentID uuid.UUID, reviewerID string, target Status) (Comment, error) {
	c := m.find(commentID)
	if c == nil {
		return Comment{}, fmt.Errorf("%w: comment %s on movie %s", cinecritic_errors.ErrNotFound, commentID, m.ID)
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return Comment{}, fmt.Errorf("%w: reviewer id is required", cinecritic_errors.ErrValidation)
	}
	if !CanTransition(c.Status, target) {
		return Comment{}, fmt.Errorf("%w: comment %s is %s, cannot become %s", cinecritic_errors.ErrInvalidTransition, commentID, c.Status, target)
	}

	at := m.now()
	c.review(target, reviewerID, at)
	switch target {
	case StatusApproved:
		m.record(events.CommentApproved{MovieID: m.ID, CommentID: c.ID, ReviewedBy: reviewerID, At: at})
	case StatusRejected:
		m.record(events.CommentRejected{MovieID: m.ID, CommentID: c.ID, ReviewedBy: reviewerID, At: at})
	}
	return c.clone(), nil
}

// ResetToPending returns a reviewed comment to the moderation queue.
func (m *Movie) ResetToPending(commentID uuid.UUID) (Comment, error) {
	c := m.find(commentID)
	if c == nil {
		return Comment{}, fmt.Errorf("%w: comment %s on movie %s", cinecritic_errors.ErrNotFound, commentID, m.ID)
	}
	if !CanTransition(c.Status, StatusPending) {
		return Comment{}, fmt.Errorf("%w: comment %s is already %s", cinecritic_errors.ErrInvalidTransition, commentID, c.Status)
	}
	c.resetReview()
	return c.clone(), nil
}

// RemoveComment deletes a comment and reports whether it existed.
func (m *Movie) RemoveComment(commentID uuid.UUID) bool {
	for i, c := range m.comments {
		if c.ID == commentID {
			m.comments = append(m.comments[:i], m.comments[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Movie) GetComment(commentID uuid.UUID) (Comment, bool) {
	c := m.find(commentID)
	if c == nil {
		return Comment{}, false
	}
	return c.clone(), true
}

// Comments returns copies of all comments in insertion order.
func (m *Movie) Comments() []Comment {
	out := make([]Comment, 0, len(m.comments))
	for _, c := range m.comments {
		out = append(out, c.clone())
	}
	return out
}

func (m *Movie) CommentsByStatus(status Status) []Comment {
	var out []Comment
	for _, c := range m.comments {
		if c.Status == status {
			out = append(out, c.clone())
		}
	}
	return out
}

// CountByStatus always contains all three statuses.
func (m *Movie) CountByStatus() map[Status]int {
	counts := map[Status]int{
		StatusPending:  0,
		StatusApproved: 0,
		StatusRejected: 0,
	}
	for _, c := range m.comments {
		counts[c.Status]++
	}
	return counts
}

func (m *Movie) PendingCount() int {
	return m.CountByStatus()[StatusPending]
}

// PullEvents hands the queued events to the caller and clears the queue.
func (m *Movie) PullEvents() []events.DomainEvent {
	out := m.pending
	m.pending = nil
	return out
}

func (m *Movie) find(commentID uuid.UUID) *Comment {
	for _, c := range m.comments {
		if c.ID == commentID {
			return c
		}
	}
	return nil
}

func (m *Movie) record(e events.DomainEvent) {
	m.pending = append(m.pending, e)
}

func (m *Movie) now() time.Time {
	if m.clock == nil {
		return time.Now().UTC()
	}
	return m.clock().UTC()
}
