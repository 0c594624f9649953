package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	classifydomain "mailsense-backend/internal/classify/domain"
	"mailsense-backend/internal/classify/repository"
	"mailsense-backend/internal/classify/usecase"
)

type ClassifyHandler struct {
	processor usecase.Processor
	pipeline  usecase.PipelineAdapter
	linkRepo  repository.LinkRepository
	senders   repository.SenderRepository
}

func NewClassifyHandler(
	processor usecase.Processor,
	pipeline usecase.PipelineAdapter,
	linkRepo repository.LinkRepository,
	senders repository.SenderRepository,
) *ClassifyHandler {
	return &ClassifyHandler{
		processor: processor,
		pipeline:  pipeline,
		linkRepo:  linkRepo,
		senders:   senders,
	}
}

func (h *ClassifyHandler) ProcessPending(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	result, err := h.processor.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ClassifyHandler) ProcessEmail(c *gin.Context) {
	classification, cached, err := h.processor.ProcessEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrEmailNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"classification": classification,
		"cached":         cached,
	})
}

func (h *ClassifyHandler) GetProcessStats(c *gin.Context) {
	stats, err := h.processor.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *ClassifyHandler) ListLinks(c *gin.Context) {
	filter := repository.LinkFilter{
		EmailID:  c.Query("email_id"),
		Status:   c.Query("status"),
		LinkType: c.Query("type"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}
	if raw := c.Query("min_relevance"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinRelevance = &parsed
		}
	}

	links, total, err := h.linkRepo.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links":     links,
		"page":      filter.Page,
		"page_size": filter.PageSize,
		"total":     total,
	})
}

type linkStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ClassifyHandler) UpdateLinkStatus(c *gin.Context) {
	var req linkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	link, err := h.pipeline.SetStatus(c.Param("id"), classifydomain.PipelineStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		case errors.Is(err, usecase.ErrBadTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *ClassifyHandler) ListQueue(c *gin.Context) {
	filter := repository.LinkFilter{
		Status:   string(classifydomain.PipelineQueued),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}

	links, total, err := h.linkRepo.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links":     links,
		"page":      filter.Page,
		"page_size": filter.PageSize,
		"total":     total,
	})
}

// MarkExtracted is the callback for downstream extractors reporting success.
func (h *ClassifyHandler) MarkExtracted(c *gin.Context) {
	link, err := h.pipeline.SetStatus(c.Param("id"), classifydomain.PipelineExtracted)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		case errors.Is(err, usecase.ErrBadTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *ClassifyHandler) QueuePipeline(c *gin.Context) {
	result, err := h.pipeline.QueueReady(queryInt(c, "limit", 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ClassifyHandler) GetPipelineStats(c *gin.Context) {
	stats, err := h.pipeline.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *ClassifyHandler) ListSenders(c *gin.Context) {
	filter := repository.SenderFilter{
		SenderType: c.Query("type"),
		SortBy:     c.Query("sort_by"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 50),
	}

	senders, total, err := h.senders.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"senders":   senders,
		"page":      filter.Page,
		"page_size": filter.PageSize,
		"total":     total,
	})
}

func (h *ClassifyHandler) GetSender(c *gin.Context) {
	sender, err := h.senders.GetByAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sender == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sender not found"})
		return
	}

	c.JSON(http.StatusOK, sender)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
