// reset-stuck-outputs marks artifacts left in processing by a crashed worker as failed.
//
// A row is stuck when its status is 'processing' and processing_started_at is older
// than -older-than. Failed rows can then be retried through the normal endpoints.
//
// Tables checked:
// - document_outputs (base artifacts)
// - client_outputs (client customizations)
// - conversion_jobs (ad-hoc PDF conversions)
//
// Usage: go run ./scripts/reset-stuck-outputs [-dry-run=false] [-older-than 30m]
//
// Database connection: Uses standard PG* environment variables
//
// Flags:
//
//	-dry-run     Show what would be reset without changing anything (default: true)
//	-older-than  Minimum processing age to treat as stuck (default: 30m)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

const stuckMessage = "processing interrupted; reset by operator"

var stuckTables = []string{
	"document_outputs",
	"client_outputs",
	"conversion_jobs",
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be reset without actually resetting")
	olderThan := flag.Duration("older-than", 30*time.Minute, "Minimum processing age to treat as stuck")
	flag.Parse()

	if *olderThan <= 0 {
		fmt.Fprintf(os.Stderr, "-older-than must be positive\n")
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	cutoff := time.Now().Add(-*olderThan)

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to reset stuck rows")
		fmt.Println()
	}

	total := 0
	for _, table := range stuckTables {
		count, err := resetStuck(ctx, conn, table, cutoff, *dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting %s: %v\n", table, err)
			os.Exit(1)
		}
		total += count
	}

	if *dryRun {
		fmt.Printf("\nTotal rows that would be reset: %d\n", total)
	} else {
		fmt.Printf("\nTotal rows reset: %d\n", total)
	}
}

// resetStuck fails every row in table that has been processing since before cutoff.
// The table name comes from stuckTables, never from input.
func resetStuck(ctx context.Context, conn *pgx.Conn, table string, cutoff time.Time, dryRun bool) (int, error) {
	if dryRun {
		rows, err := conn.Query(ctx, fmt.Sprintf(`
			SELECT id::text, processing_started_at
			FROM %s
			WHERE status = 'processing'
			  AND processing_started_at < $1
			ORDER BY processing_started_at
		`, table), cutoff)
		if err != nil {
			return 0, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		var count int
		for rows.Next() {
			var id string
			var started time.Time
			if err := rows.Scan(&id, &started); err != nil {
				return 0, fmt.Errorf("scan failed: %w", err)
			}
			count++
			fmt.Printf("  [%s] %s processing since %s (%s)\n", table, id,
				started.Format(time.RFC3339), time.Since(started).Round(time.Second))
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("rows iteration failed: %w", err)
		}

		if count == 0 {
			fmt.Printf("  [%s] No stuck rows\n", table)
		}
		return count, nil
	}

	result, err := conn.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = 'failed',
		    error_message = $2,
		    processing_completed_at = now(),
		    updated_at = now()
		WHERE status = 'processing'
		  AND processing_started_at < $1
	`, table), cutoff, stuckMessage)
	if err != nil {
		return 0, fmt.Errorf("update failed: %w", err)
	}

	count := int(result.RowsAffected())
	fmt.Printf("Reset %d stuck rows in %s\n", count, table)
	return count, nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "regwatch")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "regwatch")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
