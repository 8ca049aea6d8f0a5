// seed inserts test accounts, canvases and schedules into the local dev
// database. Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/infrastructure/postgres"
)

type accountSpec struct {
	uid   string
	email string
	tier  string
}

type scheduleSpec struct {
	canvasID string
	title    string
	uid      string
	cron     string
	timezone string
}

var accounts = []accountSpec{
	{"seed-free", "free@test.local", "free"},
	{"seed-pro", "pro@test.local", "pro"},
	{"seed-enterprise", "enterprise@test.local", "enterprise"},
}

var schedules = []scheduleSpec{
	// Every minute — fires on the first scan
	{"canvas-f-01", "Hourly report", "seed-free", "* * * * *", ""},
	{"canvas-f-02", "Inbox sweep", "seed-free", "*/5 * * * *", ""},
	{"canvas-f-03", "Daily digest", "seed-free", "0 9 * * *", "America/New_York"},

	// The free tier allows 3 active schedules — the fourth fire trips the
	// quota enforcer and disables the newest one.
	{"canvas-f-04", "Over-quota probe", "seed-free", "* * * * *", ""},

	{"canvas-p-01", "Lead sync", "seed-pro", "*/2 * * * *", ""},
	{"canvas-p-02", "Nightly cleanup", "seed-pro", "0 3 * * *", "Europe/Berlin"},

	{"canvas-e-01", "SLA monitor", "seed-enterprise", "* * * * *", ""},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	for _, a := range accounts {
		_, err := pool.Exec(ctx, `
			INSERT INTO accounts (uid, email, tier)
			VALUES ($1, $2, $3)
			ON CONFLICT (uid) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()`,
			a.uid, a.email, a.tier,
		)
		if err != nil {
			log.Fatalf("upsert account %s: %v", a.uid, err)
		}
	}

	for _, s := range schedules {
		_, err := pool.Exec(ctx, `
			INSERT INTO canvases (id, uid, title)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = NOW()`,
			s.canvasID, s.uid, s.title,
		)
		if err != nil {
			log.Fatalf("upsert canvas %s: %v", s.canvasID, err)
		}
	}

	nextRun := time.Now().Add(time.Minute)

	// Insert schedules, skip any that already exist (idempotent re-runs)
	var inserted, skipped int
	var ids []string

	for _, s := range schedules {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO schedules (canvas_id, uid, cron_expr, timezone, enabled, next_run_at)
			SELECT $1, $2, $3, $4, TRUE, $5
			WHERE NOT EXISTS (
				SELECT 1 FROM schedules
				WHERE canvas_id = $1 AND uid = $2 AND deleted_at IS NULL
			)
			RETURNING id`,
			s.canvasID, s.uid, s.cron, s.timezone, nextRun,
		).Scan(&id)
		if err != nil {
			if err.Error() == "no rows in result set" {
				skipped++
				continue
			}
			log.Fatalf("insert schedule for %s: %v", s.canvasID, err)
		}
		ids = append(ids, id)
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Accounts:          %d (free, pro, enterprise)\n", len(accounts))
	fmt.Printf("  Schedules created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  First fire at:     %s  (~1 minute from now)\n", nextRun.Format(time.RFC3339))
	fmt.Println()

	if len(ids) > 0 {
		fmt.Println("  Sample schedule IDs:")
		limit := 5
		if len(ids) < limit {
			limit = len(ids)
		}
		for _, id := range ids[:limit] {
			fmt.Printf("    %s\n", id)
		}
	}

	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — mint a JWT for a seed account (sub = account uid):")
	fmt.Println()
	fmt.Println("    export JWT=$(go run ./cmd/mkjwt seed-free)")
	fmt.Println()
	fmt.Println("  Step 2 — list the schedules:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/schedules -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 3 — wait ~1 minute for the scanner to fire them, then check records:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/records -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  What to expect:")
	fmt.Println("    every-minute schedules  →  records move scheduled → pending as jobs enqueue")
	fmt.Println("    seed-free fourth fire   →  quota enforcer disables the newest free schedule")
}
