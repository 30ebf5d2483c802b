package httpdto

// CreateMovieRequest is used for POST /v1/movies
type CreateMovieRequest struct {
	Title       string `json:"title" binding:"required,max=300"`
	Description string `json:"description,omitempty" binding:"max=5000"`
	Genre       string `json:"genre,omitempty" binding:"max=100"`
	ReleaseYear int    `json:"release_year,omitempty" binding:"omitempty,min=1888,max=2100"`
}

// MovieDTO represents a movie in API responses
type MovieDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Genre         string `json:"genre,omitempty"`
	ReleaseYear   int    `json:"release_year,omitempty"`
	PendingCount  int    `json:"pending_count"`
	ApprovedCount int    `json:"approved_count"`
	RejectedCount int    `json:"rejected_count"`
	CreatedAt     string `json:"created_at"`
}

// MovieListResponse is returned by GET /v1/movies
type MovieListResponse struct {
	Movies []MovieDTO `json:"movies"`
	Total  int64      `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
}
