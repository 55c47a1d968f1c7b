package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campusattend/internal/config"
	"campusattend/internal/notify"
	"campusattend/internal/queue"
	"campusattend/internal/store"
)

// Worker consumes accepted-scan events and dispatches notifications.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		q = queue.NewRedisQueue(redisClient.Client, "attendance:scans")
	} else {
		// in-memory queues don't span processes; this mode only makes
		// sense for local smoke runs
		q = queue.NewInMemory(64)
	}

	var notifier notify.Notifier = notify.Console{}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for scan events...")
	for msg := range messages {
		if msg.Type != "scan" {
			continue
		}

		var evt notify.ScanEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad scan event payload: %v", err)
			continue
		}

		if err := notifier.ScanAccepted(ctx, evt); err != nil {
			log.Printf("notify failed for %s/%s: %v", evt.CourseID, evt.StudentID, err)
		}
	}

	log.Println("worker stopped")
}
