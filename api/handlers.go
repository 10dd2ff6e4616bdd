package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"takealot_sync/auth"
	"takealot_sync/models"
	"takealot_sync/services"
)

const maxWebhookBody = 1 << 20

func (s *Server) healthCheck(c *gin.Context) {
	report := s.deps.Health.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    report.Status,
		"database":  report.Services["database"],
		"timestamp": report.Timestamp,
		"services":  report.Services,
	})
}

func (s *Server) syncProducts(c *gin.Context) {
	summary, err := s.deps.Sync.Sync(c.Request.Context(), auth.UserID(c), models.TriggerManual)
	if err != nil {
		s.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"synced":  summary.Synced,
		"created": summary.Created,
		"updated": summary.Updated,
		"failed":  summary.Failed,
		"errors":  summary.Errors,
	})
}

func (s *Server) listSyncRuns(c *gin.Context) {
	runs, err := s.deps.Catalog.SyncRuns(c.Request.Context(), auth.UserID(c), queryInt(c, "limit", 0))
	if err != nil {
		s.errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) takealotWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		s.errorResponse(c, fmt.Errorf("%w: read body: %v", models.ErrInvalidRequest, err))
		return
	}
	if len(body) > maxWebhookBody {
		s.log.Warnw("webhook body too large", "limit", maxWebhookBody)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	result, err := s.deps.Webhooks.Ingest(c.Request.Context(), body, c.GetHeader(services.SignatureHeader))
	if err != nil {
		s.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"event_id": result.EventID,
		"matched":  result.Matched,
		"updated":  result.Updated,
	})
}

type updatePricesRequest struct {
	Updates []models.PriceUpdate `json:"updates"`
}

func (s *Server) updatePrices(c *gin.Context) {
	var req updatePricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	summary, err := s.deps.Pricing.PushPrices(c.Request.Context(), auth.UserID(c), req.Updates)
	if err != nil {
		s.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"results":   summary.Results,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})
}

func (s *Server) listProducts(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	products, err := s.deps.Catalog.ListProducts(c.Request.Context(), auth.UserID(c), limit, offset)
	if err != nil {
		s.errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (s *Server) priceHistory(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.errorResponse(c, fmt.Errorf("%w: invalid product id", models.ErrInvalidRequest))
		return
	}

	history, err := s.deps.Catalog.PriceHistory(c.Request.Context(), auth.UserID(c), productID, queryInt(c, "limit", 0))
	if err != nil {
		s.errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "history": history})
}

func (s *Server) replayWebhooks(c *gin.Context) {
	if s.deps.Replay == nil {
		s.errorResponse(c, fmt.Errorf("%w: webhook replay disabled", models.ErrConfiguration))
		return
	}

	stats, err := s.deps.Replay.ReplayOnce(c.Request.Context())
	if err != nil {
		s.errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "replay": stats})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
