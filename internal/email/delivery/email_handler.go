package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	emaildomain "mailsense-backend/internal/email/domain"
	emaildto "mailsense-backend/internal/email/dto"
	"mailsense-backend/internal/email/repository"
	"mailsense-backend/internal/email/usecase"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

func (h *EmailHandler) ListEmails(c *gin.Context) {
	filter := repository.EmailFilter{
		Folder:      c.Query("folder"),
		FromAddress: c.Query("from"),
		Search:      c.Query("search"),
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", 50),
	}
	if readStr := c.Query("is_read"); readStr != "" {
		if read, err := strconv.ParseBool(readStr); err == nil {
			filter.IsRead = &read
		}
	}

	emails, total, err := h.emailUsecase.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{
		Emails:   emails,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Total:    total,
	})
}

func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	email, err := h.emailUsecase.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrEmailNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) GetStats(c *gin.Context) {
	stats, err := h.emailUsecase.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *EmailHandler) MarkRead(c *gin.Context) {
	h.setFlag(c, true, h.emailUsecase.SetRead)
}

func (h *EmailHandler) MarkUnread(c *gin.Context) {
	h.setFlag(c, false, h.emailUsecase.SetRead)
}

func (h *EmailHandler) Star(c *gin.Context) {
	h.setFlag(c, true, h.emailUsecase.SetStarred)
}

func (h *EmailHandler) Unstar(c *gin.Context) {
	h.setFlag(c, false, h.emailUsecase.SetStarred)
}

func (h *EmailHandler) setFlag(c *gin.Context, value bool, apply func(ctx context.Context, id string, v bool) (*emaildomain.Email, error)) {
	email, err := apply(c.Request.Context(), c.Param("id"), value)
	if err != nil {
		if errors.Is(err, usecase.ErrEmailNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, email)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
