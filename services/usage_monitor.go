package services

import (
	"log"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
)

// MonitorUsage runs continuous quota monitoring in background: tenants
// approaching their monthly limit are surfaced in the logs before the hard
// rejection starts hitting their customers.
func MonitorUsage() {
	// Initial check
	checkUsageCounters()

	// Check every hour
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		checkUsageCounters()
	}
}

func checkUsageCounters() {
	var counters []models.UsageCounter
	if err := database.GetDB().Find(&counters).Error; err != nil {
		log.Printf("⚠️  [UsageMonitor] Failed to load counters: %v", err)
		return
	}

	for _, counter := range counters {
		if counter.MonthlyLimit <= 0 {
			continue
		}
		ratio := float64(counter.Used) / float64(counter.MonthlyLimit)
		switch {
		case ratio >= 1:
			log.Printf("🔴 [UsageMonitor] Tenant %s quota EXHAUSTED (%d/%d)", counter.TenantID, counter.Used, counter.MonthlyLimit)
		case ratio >= 0.95:
			log.Printf("🔴 [UsageMonitor] Tenant %s at %.0f%% of quota (%d/%d)", counter.TenantID, ratio*100, counter.Used, counter.MonthlyLimit)
		case ratio >= 0.8:
			log.Printf("🟡 [UsageMonitor] Tenant %s at %.0f%% of quota (%d/%d)", counter.TenantID, ratio*100, counter.Used, counter.MonthlyLimit)
		}
	}
}
