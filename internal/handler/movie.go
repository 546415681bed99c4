package handler

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/user/movierec/internal/apperr"
	"github.com/user/movierec/internal/utils"
)

type listMoviesQuery struct {
	Page  int `form:"page" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0"`
}

type recommendationsQuery struct {
	Limit int `form:"limit" binding:"min=0"`
}

// ListMovies GET /api/v1/movies?page=&limit=
func (h *Handler) ListMovies(c *gin.Context) {
	var q listMoviesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.Error(queryError(err, "Invalid page or limit format"))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = h.Config.DefaultPageSize
	}
	if q.Limit > h.Config.MaxPageSize {
		c.Error(apperr.Validation("Limit cannot exceed %d items", h.Config.MaxPageSize))
		return
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		c.Error(apperr.Validation("Page is out of range"))
		return
	}

	movies, err := h.Movies.ListMovies(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		c.Error(err)
		return
	}
	utils.Success(c, "Movies fetched successfully", movies)
}

// GetMovie GET /api/v1/movies/:id
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := movieID(c)
	if err != nil {
		c.Error(err)
		return
	}
	movie, err := h.Movies.GetMovie(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	utils.Success(c, "Movie fetched successfully", movie)
}

// Recommendations GET /api/v1/movies/:id/recommendations?limit=
func (h *Handler) Recommendations(c *gin.Context) {
	id, err := movieID(c)
	if err != nil {
		c.Error(err)
		return
	}
	var q recommendationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.Error(queryError(err, "Invalid limit format"))
		return
	}
	if q.Limit == 0 {
		q.Limit = h.Config.DefaultRecommendations
	}
	if q.Limit > h.Config.MaxRecommendations {
		c.Error(apperr.Validation("Limit cannot exceed %d items", h.Config.MaxRecommendations))
		return
	}

	recs, err := h.Movies.Recommend(c.Request.Context(), id, q.Limit)
	if err != nil {
		c.Error(err)
		return
	}
	utils.Success(c, "Recommendations fetched successfully", recs)
}

func movieID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid Movie ID format")
	}
	return id, nil
}

// queryError names the offending parameters when the binding validator
// rejected them; parse failures get the generic message.
func queryError(err error, fallback string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%s", fallback)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return apperr.Validation("%s must not be negative", strings.Join(fields, " and "))
}
