package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailsense-backend/internal/proposal/repository"
	"mailsense-backend/internal/proposal/usecase"
)

type ProposalHandler struct {
	generator usecase.Generator
	executor  usecase.Executor
}

func NewProposalHandler(generator usecase.Generator, executor usecase.Executor) *ProposalHandler {
	return &ProposalHandler{
		generator: generator,
		executor:  executor,
	}
}

func (h *ProposalHandler) ListProposals(c *gin.Context) {
	filter := repository.ProposalFilter{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	proposals, total, err := h.executor.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"proposals": proposals,
		"page":      filter.Page,
		"page_size": filter.PageSize,
		"total":     total,
	})
}

func (h *ProposalHandler) GetProposal(c *gin.Context) {
	proposal, err := h.executor.Get(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *ProposalHandler) Generate(c *gin.Context) {
	result, err := h.generator.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProposalHandler) Approve(c *gin.Context) {
	proposal, err := h.executor.Approve(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *ProposalHandler) Reject(c *gin.Context) {
	proposal, err := h.executor.Reject(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *ProposalHandler) Execute(c *gin.Context) {
	result, err := h.executor.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProposalHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrProposalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
	case errors.Is(err, usecase.ErrBadStatus):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
