package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/service"
	"github.com/user/movierec/internal/utils"
)

// Handler HTTP handlers of the API.
type Handler struct {
	Movies *service.MovieService
	Config *config.APIConfig
}

func NewHandler(movies *service.MovieService, cfg *config.APIConfig) *Handler {
	return &Handler{Movies: movies, Config: cfg}
}

// Index banner at /.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Movies Recommender API"})
}

// Health liveness check.
func (h *Handler) Health(c *gin.Context) {
	utils.Success(c, "OK", gin.H{"status": "ok"})
}
