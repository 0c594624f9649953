package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	emaildomain "mailsense-backend/internal/email/domain"
	emaildto "mailsense-backend/internal/email/dto"
	"mailsense-backend/internal/email/usecase"
)

type SyncHandler struct {
	syncUsecase   usecase.SyncUsecase
	defaultFolder string
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase, defaultFolder string) *SyncHandler {
	return &SyncHandler{
		syncUsecase:   syncUsecase,
		defaultFolder: defaultFolder,
	}
}

func (h *SyncHandler) Connect(c *gin.Context) {
	if err := h.syncUsecase.Connect(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "connected"})
}

func (h *SyncHandler) Disconnect(c *gin.Context) {
	if err := h.syncUsecase.Disconnect(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "disconnected"})
}

func (h *SyncHandler) RunSync(c *gin.Context) {
	var req emaildto.SyncRequest
	// Empty body means "sync the default folder".
	_ = c.ShouldBindJSON(&req)
	// Query parameters win over the body.
	if folder := c.Query("folder"); folder != "" {
		req.Folder = folder
	}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if req.Folder == "" {
		req.Folder = h.defaultFolder
	}

	result, err := h.syncUsecase.Sync(c.Request.Context(), req.Folder, req.Limit)
	if err != nil {
		switch {
		case errors.Is(err, emaildomain.ErrNotConnected):
			c.JSON(http.StatusConflict, gin.H{"error": "not connected to mailbox"})
		case errors.Is(err, emaildomain.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress for folder"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.syncUsecase.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}
