package events

// Event type constants follow the format: domain.action
type EventType string

// Comment events
const (
	EventCommentCreated  EventType = "comment.created"
	EventCommentApproved EventType = "comment.approved"
	EventCommentRejected EventType = "comment.rejected"
)

// Movie events
const (
	EventMovieCreated EventType = "movie.created"
	EventMovieDeleted EventType = "movie.deleted"
)

// Aggregate type constants
const (
	AggregateTypeMovie = "movie"
)

// GroupAdministrators is the hub group every moderation notification is sent to.
const GroupAdministrators = "Administrators"

// Redis channel prefixes
const (
	ChannelPrefixGroup = "channel:group:"
)

// GroupChannel returns the pub/sub channel carrying broadcasts for a hub group.
func GroupChannel(group string) string {
	return ChannelPrefixGroup + group
}
