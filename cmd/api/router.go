package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			status := gin.H{"status": "ok"}
			if last := h.sched.LastRun(); last != nil {
				status["last_scheduler_run"] = last
			}
			c.JSON(http.StatusOK, status)
		})

		// Mailbox sync
		sync := api.Group("/sync")
		{
			sync.POST("/connect", h.syncHandler.Connect)
			sync.POST("/disconnect", h.syncHandler.Disconnect)
			sync.POST("/run", h.syncHandler.RunSync)
			sync.GET("/status", h.syncHandler.GetStatus)
		}

		// Stored emails
		emails := api.Group("/emails")
		{
			emails.GET("", h.emailHandler.ListEmails)
			emails.GET("/stats", h.emailHandler.GetStats)
			emails.GET("/:id", h.emailHandler.GetEmailByID)
			emails.PATCH("/:id/read", h.emailHandler.MarkRead)
			emails.PATCH("/:id/unread", h.emailHandler.MarkUnread)
			emails.PATCH("/:id/star", h.emailHandler.Star)
			emails.PATCH("/:id/unstar", h.emailHandler.Unstar)
		}

		// Classification
		process := api.Group("/process")
		{
			process.POST("", h.classifyHandler.ProcessPending)
			process.GET("/stats", h.classifyHandler.GetProcessStats)
			process.POST("/:id", h.classifyHandler.ProcessEmail)
		}

		// Extracted links and the downstream pipeline
		links := api.Group("/links")
		{
			links.GET("", h.classifyHandler.ListLinks)
			links.PATCH("/:id/status", h.classifyHandler.UpdateLinkStatus)
		}
		pipeline := api.Group("/pipeline")
		{
			pipeline.POST("/queue", h.classifyHandler.QueuePipeline)
			pipeline.GET("/queue", h.classifyHandler.ListQueue)
			pipeline.POST("/extracted/:id", h.classifyHandler.MarkExtracted)
			pipeline.GET("/stats", h.classifyHandler.GetPipelineStats)
		}

		// Sender intelligence
		senders := api.Group("/senders")
		{
			senders.GET("", h.classifyHandler.ListSenders)
			senders.GET("/:address", h.classifyHandler.GetSender)
		}

		// Cleanup proposals
		proposals := api.Group("/proposals")
		{
			proposals.GET("", h.proposalHandler.ListProposals)
			proposals.POST("/generate", h.proposalHandler.Generate)
			proposals.GET("/:id", h.proposalHandler.GetProposal)
			proposals.POST("/:id/approve", h.proposalHandler.Approve)
			proposals.POST("/:id/reject", h.proposalHandler.Reject)
			proposals.POST("/:id/execute", h.proposalHandler.Execute)
		}
	}
}
