package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/delivery/http/middleware"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
)

// AccessTokenHeader is an alternative to the token query parameter.
const AccessTokenHeader = "X-Access-Token"

// BulkHandler handles bulk verification job endpoints.
type BulkHandler struct {
	createJobUC *usecase.CreateJobUsecase
	getJobUC    *usecase.GetJobUsecase
	logger      *zap.Logger
}

// NewBulkHandler creates a new BulkHandler.
func NewBulkHandler(createJobUC *usecase.CreateJobUsecase, getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *BulkHandler {
	return &BulkHandler{
		createJobUC: createJobUC,
		getJobUC:    getJobUC,
		logger:      logger,
	}
}

// Create handles POST /api/v1/bulk
func (h *BulkHandler) Create(c *gin.Context) {
	var req domain.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.createJobUC.Execute(c.Request.Context(), &req, middleware.GetOwner(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Status handles GET /api/v1/bulk/:id
func (h *BulkHandler) Status(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	view, err := h.getJobUC.Status(c.Request.Context(), id, accessFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Results handles GET /api/v1/bulk/:id/results
func (h *BulkHandler) Results(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	page := queryInt(c, "page")
	limit := queryInt(c, "limit")

	view, err := h.getJobUC.Results(c.Request.Context(), id, accessFrom(c), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// parseJobID answers 404 for a malformed id so ids cannot be guessed by shape.
func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": domain.ErrJobNotFound.Error()})
		return uuid.Nil, false
	}
	return id, true
}

func accessFrom(c *gin.Context) domain.Access {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.GetHeader(AccessTokenHeader))
	}
	return domain.Access{Token: token, Owner: middleware.GetOwner(c)}
}

// queryInt returns 0 for a missing or malformed value; the usecase applies defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
