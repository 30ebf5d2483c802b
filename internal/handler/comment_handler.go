package handler

import (
	"context"
	"net/http"
	"time"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/services"
	"cinecritic/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	service *services.ModerationService
}

func NewCommentHandler(service *services.ModerationService) *CommentHandler {
	return &CommentHandler{service: service}
}

// Add posts a comment as the authenticated user. It always starts Pending.
func (h *CommentHandler) Add(c *gin.Context) {
	movieID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return
	}

	var req httpdto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), movieID, userID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toCommentDTO(comment)))
}

func (h *CommentHandler) List(c *gin.Context) {
	movieID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return
	}

	var filter *movie.Status
	if raw := c.Query("status"); raw != "" {
		status, ok := movie.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid status", httpdto.CodeInvalidRequest))
			return
		}
		filter = &status
	}

	comments, err := h.service.ListComments(c.Request.Context(), movieID, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.CommentDTO, len(comments))
	for i, cm := range comments {
		dtos[i] = toCommentDTO(cm)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CommentListResponse{Comments: dtos}))
}

func (h *CommentHandler) Stats(c *gin.Context) {
	movieID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), movieID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CommentStatsResponse{
		MovieID:  stats.MovieID.String(),
		Pending:  stats.Pending,
		Approved: stats.Approved,
		Rejected: stats.Rejected,
		Total:    stats.Total,
	}))
}

func (h *CommentHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

func (h *CommentHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

func (h *CommentHandler) Reset(c *gin.Context) {
	movieID, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	comment, err := h.service.ResetToPending(c.Request.Context(), movieID, commentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toCommentDTO(comment)))
}

func (h *CommentHandler) Delete(c *gin.Context) {
	movieID, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	if err := h.service.RemoveComment(c.Request.Context(), movieID, commentID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

type reviewFunc func(ctx context.Context, movieID, commentID uuid.UUID, reviewerID string) (movie.Comment, error)

// review applies an approve or reject as the authenticated administrator.
func (h *CommentHandler) review(c *gin.Context, apply reviewFunc) {
	movieID, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	reviewerID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}

	comment, err := apply(c.Request.Context(), movieID, commentID, reviewerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toCommentDTO(comment)))
}

func commentParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	movieID, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return uuid.Nil, uuid.Nil, false
	}
	commentID, err := parseUUID(c.Param("commentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid comment id", httpdto.CodeInvalidRequest))
		return uuid.Nil, uuid.Nil, false
	}
	return movieID, commentID, true
}

func toCommentDTO(cm movie.Comment) httpdto.CommentDTO {
	dto := httpdto.CommentDTO{
		ID:         cm.ID.String(),
		MovieID:    cm.MovieID.String(),
		AuthorID:   cm.AuthorID,
		Text:       cm.Text,
		Status:     string(cm.Status),
		ReviewedBy: cm.ReviewedBy,
		CreatedAt:  cm.CreatedAt.Format(time.RFC3339),
	}
	if cm.ReviewedAt != nil {
		at := cm.ReviewedAt.Format(time.RFC3339)
		dto.ReviewedAt = &at
	}
	return dto
}
