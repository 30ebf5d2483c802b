// Package notifications turns committed domain events into the messages
// pushed to connected administrator sessions.
package notifications

import (
	"time"
	"unicode/utf8"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/events"
)

// HubMethod is the client-side method every notification frame invokes.
const HubMethod = "ReceiveNotification"

// PreviewLength is the number of runes of comment text kept in a preview.
const PreviewLength = 100

// Notification types as they appear in the "type" field on the wire.
const (
	TypeNewComment      = "NewComment"
	TypeCommentApproved = "CommentApproved"
	TypeCommentRejected = "CommentRejected"
	TypeMovieCreated    = "MovieCreated"
	TypeMovieDeleted    = "MovieDeleted"
)

// Notification is the closed set of payloads the dispatcher sends.
type Notification interface {
	Kind() string
	isNotification()
}

type NewComment struct {
	Type           string    `json:"type"`
	MovieID        string    `json:"itemId"`
	MovieTitle     string    `json:"itemTitle"`
	CommentID      string    `json:"commentId"`
	CommentPreview string    `json:"commentPreview"`
	AuthorID       string    `json:"authorId"`
	Timestamp      time.Time `json:"timestamp"`
}

// CommentModerated carries both approval and rejection; Type and NewStatus
// tell them apart.
type CommentModerated struct {
	Type       string    `json:"type"`
	CommentID  string    `json:"commentId"`
	MovieID    string    `json:"itemId"`
	NewStatus  string    `json:"newStatus"`
	ReviewedBy string    `json:"reviewedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

// CatalogChanged carries MovieCreated and MovieDeleted.
type CatalogChanged struct {
	Type       string    `json:"type"`
	MovieID    string    `json:"itemId"`
	MovieTitle string    `json:"itemTitle"`
	Timestamp  time.Time `json:"timestamp"`
}

func (n NewComment) Kind() string       { return n.Type }
func (n CommentModerated) Kind() string { return n.Type }
func (n CatalogChanged) Kind() string   { return n.Type }

func (NewComment) isNotification()       {}
func (CommentModerated) isNotification() {}
func (CatalogChanged) isNotification()   {}

// Frame is the hub message wrapping a notification.
type Frame struct {
	Method  string       `json:"method"`
	Payload Notification `json:"payload"`
}

// FromEvent maps a domain event to its notification. It reports false for
// events that have no notification.
func FromEvent(event events.DomainEvent) (Notification, bool) {
	switch e := event.(type) {
	case events.CommentCreated:
		return NewComment{
			Type:           TypeNewComment,
			MovieID:        e.MovieID.String(),
			MovieTitle:     e.MovieTitle,
			CommentID:      e.CommentID.String(),
			CommentPreview: Preview(e.Text),
			AuthorID:       e.AuthorID,
			Timestamp:      e.At.UTC(),
		}, true
	case events.CommentApproved:
		return CommentModerated{
			Type:       TypeCommentApproved,
			CommentID:  e.CommentID.String(),
			MovieID:    e.MovieID.String(),
			NewStatus:  string(movie.StatusApproved),
			ReviewedBy: e.ReviewedBy,
			Timestamp:  e.At.UTC(),
		}, true
	case events.CommentRejected:
		return CommentModerated{
			Type:       TypeCommentRejected,
			CommentID:  e.CommentID.String(),
			MovieID:    e.MovieID.String(),
			NewStatus:  string(movie.StatusRejected),
			ReviewedBy: e.ReviewedBy,
			Timestamp:  e.At.UTC(),
		}, true
	case events.MovieCreated:
		return CatalogChanged{
			Type:       TypeMovieCreated,
			MovieID:    e.MovieID.String(),
			MovieTitle: e.Title,
			Timestamp:  e.At.UTC(),
		}, true
	case events.MovieDeleted:
		return CatalogChanged{
			Type:       TypeMovieDeleted,
			MovieID:    e.MovieID.String(),
			MovieTitle: e.Title,
			Timestamp:  e.At.UTC(),
		}, true
	default:
		return nil, false
	}
}

// Preview truncates text to PreviewLength runes, appending an ellipsis when
// anything was cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "…"
}
