package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
)

const (
	streamInterval = 500 * time.Millisecond
	writeTimeout   = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams job progress over a WebSocket.
type WebSocketHandler struct {
	getJobUC *usecase.GetJobUsecase
	interval time.Duration
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		getJobUC: getJobUC,
		interval: streamInterval,
		logger:   logger,
	}
}

// Stream handles GET /api/v1/bulk/:id/stream (WebSocket upgrade).
// Access is checked before the upgrade so unauthorized callers get a plain 404.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}
	access := accessFrom(c)

	view, err := h.getJobUC.Status(c.Request.Context(), id, access)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("job_id", id.String()))
	log.Debug("WebSocket connection opened")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends data; reading surfaces its close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last *domain.JobStatusView
	for {
		if last == nil || view.Status != last.Status || view.Processed != last.Processed {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(view); err != nil {
				log.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			last = view
		}
		if view.Status.IsTerminal() {
			log.Debug("Job reached terminal state, closing WebSocket")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(view.Status)),
				time.Now().Add(writeTimeout))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		view, err = h.getJobUC.Status(ctx, id, access)
		if err != nil {
			status, msg := classifyError(err)
			if status >= http.StatusInternalServerError {
				log.Warn("Status poll failed", zap.Error(err))
			}
			_ = conn.WriteJSON(gin.H{"success": false, "error": msg})
			return
		}
	}
}
