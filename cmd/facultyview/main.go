package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"campusattend/internal/attendance"
	"campusattend/internal/config"
	"campusattend/internal/reconcile"
)

// facultyview is a terminal roster viewer: it polls the attendance API on
// the configured interval and renders the reconciled view. Toggling is
// left to the web client; this binary exists for operators watching a
// session run.
func main() {
	var (
		baseURL  = flag.String("api", "http://localhost:8081", "attendance API base URL")
		token    = flag.String("token", "", "faculty bearer token")
		courseID = flag.String("course", "", "course id")
		dateStr  = flag.String("date", "", "date (YYYY-MM-DD), default today")
	)
	flag.Parse()

	if *token == "" || *courseID == "" {
		flag.Usage()
		os.Exit(2)
	}

	date := attendance.DateOf(time.Now())
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.Fatalf("bad date: %v", err)
		}
		date = parsed
	}

	cfg := config.Load()
	client := reconcile.NewClient(*baseURL, *token)
	eng := reconcile.NewEngine(client, client, *courseID, date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go eng.Run(ctx, cfg.PollInterval)

	render := time.NewTicker(cfg.PollInterval)
	defer render.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-render.C:
			printView(eng)
		}
	}
}

func printView(eng *reconcile.Engine) {
	view := eng.View()
	ids := make([]string, 0, len(view))
	for id := range view {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("---- %s ----\n", time.Now().Format("15:04:05"))
	for _, id := range ids {
		entry := view[id]
		fmt.Printf("%-16s %-8s %s\n", id, entry.Status, entry.MarkedVia)
	}
}
