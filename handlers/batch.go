package handlers

import (
	"log"
	"net/http"

	"genfity-wa-autoreply/services"

	"github.com/gin-gonic/gin"
)

// BatchSweepCronJob is the externally-triggered sweep endpoint. Intended to
// be hit on a fixed interval (see services.BatchWindowSeconds); safe to run
// concurrently with the background sweeper since the batch claim is atomic.
func BatchSweepCronJob(pipeline *services.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := services.ProcessPendingBatches(pipeline.ProcessBatch)
		if err != nil {
			log.Printf("❌ [Cron] Sweep failed: %v", err)
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Sweep completed",
			"batches": count,
		})
	}
}
