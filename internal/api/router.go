package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kulina-reconciliation/internal/api/handler"
	"github.com/kulina-reconciliation/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	importHandler *handler.ImportHandler,
	runHandler *handler.RunHandler,
	reviewHandler *handler.ReviewHandler,
	reportHandler *handler.ReportHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// File ingestion
		imports := v1.Group("/imports")
		{
			imports.POST("/settlements", importHandler.UploadSettlement)
			imports.POST("/statements", importHandler.UploadStatement)
		}

		// Reconciliation runs
		runs := v1.Group("/reconciliation/runs")
		{
			runs.POST("", runHandler.Start)
			runs.GET("/:id", runHandler.Get)
			runs.POST("/:id/cancel", runHandler.Cancel)
		}

		// Manual review
		reviews := v1.Group("/reviews")
		{
			reviews.GET("/pending", reviewHandler.GetPending)
			reviews.GET("/history", reviewHandler.GetHistory)
			reviews.POST("/matches/:id/approve", reviewHandler.ApproveMatch)
			reviews.POST("/matches/:id/reject", reviewHandler.RejectMatch)
			reviews.POST("/statements/:id/unmatch", reviewHandler.UnmatchStatement)
			reviews.POST("/fees/:id/approve", reviewHandler.ApproveFee)
			reviews.POST("/fees/:id/reject", reviewHandler.RejectFee)
		}
		v1.POST("/matches/manual", reviewHandler.ManualMatch)
		v1.POST("/fees/applied/:id/adjust", reviewHandler.AdjustFee)

		// Reporting
		reports := v1.Group("/reports")
		{
			reports.GET("/summary", reportHandler.GetSummary)
			reports.GET("/discrepancies", reportHandler.GetDiscrepancies)
			reports.GET("/fees", reportHandler.GetFeeReport)
			reports.GET("/export", reportHandler.ExportUnreconciled)
		}
		v1.GET("/statements/unreconciled", reportHandler.GetUnreconciledStatements)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
