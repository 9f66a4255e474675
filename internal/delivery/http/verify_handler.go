package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
)

// VerifyHandler handles single-address verification.
type VerifyHandler struct {
	verifyUC *usecase.VerifyAddressUsecase
	logger   *zap.Logger
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifyUC *usecase.VerifyAddressUsecase, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{verifyUC: verifyUC, logger: logger}
}

// Verify handles POST /api/v1/verify
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req domain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.verifyUC.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
