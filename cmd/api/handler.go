package api

import (
	"github.com/gin-gonic/gin"

	classifydelivery "mailsense-backend/internal/classify/delivery"
	emaildelivery "mailsense-backend/internal/email/delivery"
	proposaldelivery "mailsense-backend/internal/proposal/delivery"
	"mailsense-backend/internal/scheduler"
)

type Handler struct {
	syncHandler     *emaildelivery.SyncHandler
	emailHandler    *emaildelivery.EmailHandler
	classifyHandler *classifydelivery.ClassifyHandler
	proposalHandler *proposaldelivery.ProposalHandler
	sched           *scheduler.Scheduler
}

func NewHandler(
	syncHandler *emaildelivery.SyncHandler,
	emailHandler *emaildelivery.EmailHandler,
	classifyHandler *classifydelivery.ClassifyHandler,
	proposalHandler *proposaldelivery.ProposalHandler,
	sched *scheduler.Scheduler,
) *Handler {
	return &Handler{
		syncHandler:     syncHandler,
		emailHandler:    emailHandler,
		classifyHandler: classifyHandler,
		proposalHandler: proposalHandler,
		sched:           sched,
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)

	return r.Run(addr)
}
