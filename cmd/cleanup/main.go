package main

import (
	"log"
	"time"

	scheduleRepo "linecal-backend/internal/schedule/repository"
	"linecal-backend/pkg/config"
	"linecal-backend/pkg/database"
)

// Housekeeping job, run on a schedule outside the bot process: processed
// schedules and day-old pending ones are of no further use to the state
// machine and only grow the tables.
func main() {
	cfg := config.Load()

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	repo := scheduleRepo.NewScheduleRepository(db)

	log.Println("Starting cleanup...")

	deleted, err := repo.DeleteProcessed()
	if err != nil {
		log.Fatal("Failed to delete processed schedules:", err)
	}
	log.Printf("Deleted %d processed schedules (REGISTERED/SKIPPED)", deleted)

	deleted, err = repo.DeleteStalePending(time.Now().AddDate(0, 0, -1))
	if err != nil {
		log.Fatal("Failed to delete stale pending schedules:", err)
	}
	log.Printf("Deleted %d old PENDING schedules (older than 1 day)", deleted)

	deleted, err = repo.DeleteOrphanHistory()
	if err != nil {
		log.Fatal("Failed to delete orphaned histories:", err)
	}
	if deleted > 0 {
		log.Printf("Deleted %d orphaned schedule histories", deleted)
	}

	log.Println("Cleanup completed!")
}
