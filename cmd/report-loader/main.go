// Command report-loader imports saved benchmark reports into the runs database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inference-bench/inference-bench/internal/report"
	"github.com/inference-bench/inference-bench/internal/storage"
	"github.com/inference-bench/inference-bench/pkg/models"
)

func main() {
	dbPath := flag.String("db", "./data/inference-bench.db", "Path to SQLite database")
	dataDir := flag.String("dir", "", "Directory containing report JSON files (required)")
	model := flag.String("model", "unknown", "Model name to record for the imported runs")
	endpoint := flag.String("endpoint", "unknown", "Endpoint to record for the imported runs")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("--dir is required")
	}

	db, err := storage.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := storage.NewRunStore(db)

	entries, err := os.ReadDir(*dataDir)
	if err != nil {
		log.Fatalf("Failed to read directory: %v", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(*dataDir, entry.Name())
		rep, err := report.LoadJSON(path)
		if err != nil {
			log.Printf("Skipping %s: %v", entry.Name(), err)
			continue
		}

		run := runFromReport(rep, *model, *endpoint)
		doc, err := json.Marshal(rep)
		if err != nil {
			log.Printf("Failed to encode %s: %v", entry.Name(), err)
			continue
		}

		if err := store.Create(ctx, run, doc); err != nil {
			log.Printf("Failed to save %s: %v", entry.Name(), err)
			continue
		}

		fmt.Printf("Loaded: %s - %d requests, %d failures (%.2f req/s)\n",
			entry.Name(), run.TotalRequests, run.TotalFailures, run.RequestsPerSecond)
		loaded++
	}

	fmt.Printf("\nLoaded %d reports\n", loaded)
}

func runFromReport(rep *report.Report, model, endpoint string) *models.Run {
	o := rep.OverallStats
	run := &models.Run{
		ID:                uuid.New().String(),
		Model:             model,
		Endpoint:          endpoint,
		Status:            models.StatusCompleted,
		TotalRequests:     o.TotalNumberRequests,
		TotalFailures:     o.TotalNumberFailures,
		PromptTokens:      o.TotalPromptTokens,
		CompletionTokens:  o.TotalCompletionTokens,
		TotalTokens:       o.TotalTokens,
		DurationSeconds:   o.TotalDurationSeconds,
		RequestsPerSecond: o.RequestsPerSecond,
		CreatedAt:         time.Now().UTC(),
	}
	if o.StartTime != nil {
		run.StartedAt = epochToTime(*o.StartTime)
	}
	if o.EndTime != nil {
		run.FinishedAt = epochToTime(*o.EndTime)
	}
	return run
}

func epochToTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}
