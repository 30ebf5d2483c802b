package httpdto

// AddCommentRequest is used for POST /v1/movies/:id/comments
type AddCommentRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// CommentDTO represents a comment in API responses
type CommentDTO struct {
	ID         string  `json:"id"`
	MovieID    string  `json:"movie_id"`
	AuthorID   string  `json:"author_id"`
	Text       string  `json:"text"`
	Status     string  `json:"status"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`
	ReviewedAt *string `json:"reviewed_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// CommentListResponse is returned by GET /v1/movies/:id/comments
type CommentListResponse struct {
	Comments []CommentDTO `json:"comments"`
}

// CommentStatsResponse is returned by GET /v1/movies/:id/comments/stats
type CommentStatsResponse struct {
	MovieID  string `json:"movie_id"`
	Pending  int    `json:"pending"`
	Approved int    `json:"approved"`
	Rejected int    `json:"rejected"`
	Total    int    `json:"total"`
}
