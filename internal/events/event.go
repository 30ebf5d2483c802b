package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable record of something that already happened to a movie aggregate.
// The set of implementations is closed; see the isDomainEvent marker.
type DomainEvent interface {
	Type() EventType
	AggregateID() uuid.UUID
	OccurredAt() time.Time
	isDomainEvent()
}

// CommentCreated is queued when a comment is added to a movie.
type CommentCreated struct {
	MovieID    uuid.UUID `json:"movie_id"`
	MovieTitle string    `json:"movie_title"`
	CommentID  uuid.UUID `json:"comment_id"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	At         time.Time `json:"occurred_at"`
}

// CommentApproved is queued when a pending comment is approved.
type CommentApproved struct {
	MovieID    uuid.UUID `json:"movie_id"`
	CommentID  uuid.UUID `json:"comment_id"`
	ReviewedBy string    `json:"reviewed_by"`
	At         time.Time `json:"occurred_at"`
}

// CommentRejected is queued when a pending comment is rejected.
type CommentRejected struct {
	MovieID    uuid.UUID `json:"movie_id"`
	CommentID  uuid.UUID `json:"comment_id"`
	ReviewedBy string    `json:"reviewed_by"`
	At         time.Time `json:"occurred_at"`
}

// MovieCreated is queued when a movie enters the catalog.
type MovieCreated struct {
	MovieID uuid.UUID `json:"movie_id"`
	Title   string    `json:"title"`
	At      time.Time `json:"occurred_at"`
}

// MovieDeleted is queued when a movie is removed from the catalog.
type MovieDeleted struct {
	MovieID uuid.UUID `json:"movie_id"`
	Title   string    `json:"title"`
	At      time.Time `json:"occurred_at"`
}

func (CommentCreated) Type() EventType  { return EventCommentCreated }
func (CommentApproved) Type() EventType { return EventCommentApproved }
func (CommentRejected) Type() EventType { return EventCommentRejected }
func (MovieCreated) Type() EventType    { return EventMovieCreated }
func (MovieDeleted) Type() EventType    { return EventMovieDeleted }

func (e CommentCreated) AggregateID() uuid.UUID  { return e.MovieID }
func (e CommentApproved) AggregateID() uuid.UUID { return e.MovieID }
func (e CommentRejected) AggregateID() uuid.UUID { return e.MovieID }
func (e MovieCreated) AggregateID() uuid.UUID    { return e.MovieID }
func (e MovieDeleted) AggregateID() uuid.UUID    { return e.MovieID }

func (e CommentCreated) OccurredAt() time.Time  { return e.At }
func (e CommentApproved) OccurredAt() time.Time { return e.At }
func (e CommentRejected) OccurredAt() time.Time { return e.At }
func (e MovieCreated) OccurredAt() time.Time    { return e.At }
func (e MovieDeleted) OccurredAt() time.Time    { return e.At }

func (CommentCreated) isDomainEvent()  {}
func (CommentApproved) isDomainEvent() {}
func (CommentRejected) isDomainEvent() {}
func (MovieCreated) isDomainEvent()    {}
func (MovieDeleted) isDomainEvent()    {}
