package handler

import (
	"net/http"
	"strconv"
	"time"

	"cinecritic/internal/repository"
	"cinecritic/internal/services"
	"cinecritic/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MovieHandler struct {
	service *services.CatalogService
}

func NewMovieHandler(service *services.CatalogService) *MovieHandler {
	return &MovieHandler{service: service}
}

func (h *MovieHandler) Create(c *gin.Context) {
	var req httpdto.CreateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	summary, err := h.service.CreateMovie(c.Request.Context(), services.CreateMovieInput{
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
		ReleaseYear: req.ReleaseYear,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toMovieDTO(summary)))
}

func (h *MovieHandler) Get(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return
	}

	summary, err := h.service.GetMovie(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toMovieDTO(summary)))
}

func (h *MovieHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, limit = repository.NormalizePage(page, limit)

	items, total, err := h.service.ListMovies(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.MovieDTO, len(items))
	for i, m := range items {
		dtos[i] = toMovieDTO(m)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MovieListResponse{
		Movies: dtos,
		Total:  total,
		Page:   page,
		Limit:  limit,
	}))
}

func (h *MovieHandler) Delete(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid movie id", httpdto.CodeInvalidRequest))
		return
	}
	if err := h.service.DeleteMovie(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func toMovieDTO(m services.MovieSummary) httpdto.MovieDTO {
	return httpdto.MovieDTO{
		ID:            m.ID.String(),
		Title:         m.Title,
		Description:   m.Description,
		Genre:         m.Genre,
		ReleaseYear:   m.ReleaseYear,
		PendingCount:  m.PendingCount,
		ApprovedCount: m.ApprovedCount,
		RejectedCount: m.RejectedCount,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
