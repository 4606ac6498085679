// seed loads agencies, tenants, subscriptions and client rosters from a YAML file.
//
// Usage: go run ./scripts/seed [-dry-run] [-file scripts/seed/seed.yaml]
//
// Database connection: Uses standard PG* environment variables
//
// Rows are upserted by primary key, so the file can be re-applied after edits.
// Clients without an id get one derived from the tenant id and client name.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

func main() {
	file := flag.String("file", "scripts/seed/seed.yaml", "Seed file to apply")
	dryRun := flag.Bool("dry-run", false, "Parse and validate the seed file without writing")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read seed file: %v\n", err)
		os.Exit(1)
	}

	seed, err := parseSeed(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid seed file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seed file %s: %d agencies, %d tenants\n", *file, len(seed.Agencies), len(seed.Tenants))
	if *dryRun {
		for _, t := range seed.Tenants {
			fmt.Printf("  %s (%s) %s: %d subscriptions, %d clients\n",
				t.Name, t.ID, t.OutputType, len(t.Subscriptions), len(t.Clients))
		}
		return
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if err := apply(ctx, conn, seed); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply seed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Seed applied")
}

func apply(ctx context.Context, conn *pgx.Conn, seed *seedFile) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range seed.Agencies {
		_, err := tx.Exec(ctx, `
			INSERT INTO agencies (id, name, registry_slug, document_types, newsroom_feed_url, is_active)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				registry_slug = EXCLUDED.registry_slug,
				document_types = EXCLUDED.document_types,
				newsroom_feed_url = EXCLUDED.newsroom_feed_url,
				is_active = EXCLUDED.is_active`,
			a.ID, a.Name, a.RegistrySlug, a.DocumentTypes, a.NewsroomFeedURL, a.active())
		if err != nil {
			return fmt.Errorf("agency %s: %w", a.ID, err)
		}
	}

	for _, t := range seed.Tenants {
		branding, err := json.Marshal(t.Branding.model())
		if err != nil {
			return fmt.Errorf("tenant %s branding: %w", t.Name, err)
		}
		modelCfg, err := json.Marshal(models.ModelConfig(t.ModelConfig))
		if err != nil {
			return fmt.Errorf("tenant %s model config: %w", t.Name, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO tenants (id, name, output_type, has_client_roster, auto_process, branding, model_config, description_doc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				output_type = EXCLUDED.output_type,
				has_client_roster = EXCLUDED.has_client_roster,
				auto_process = EXCLUDED.auto_process,
				branding = EXCLUDED.branding,
				model_config = EXCLUDED.model_config,
				description_doc = EXCLUDED.description_doc,
				updated_at = now()`,
			t.ID, t.Name, t.OutputType, len(t.Clients) > 0, t.autoProcess(), branding, modelCfg, t.DescriptionDoc)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", t.Name, err)
		}

		for _, s := range t.Subscriptions {
			_, err := tx.Exec(ctx, `
				INSERT INTO tenant_agencies (tenant_id, agency_id, registry_feed_enabled, newsroom_feed_enabled)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (tenant_id, agency_id) DO UPDATE SET
					registry_feed_enabled = EXCLUDED.registry_feed_enabled,
					newsroom_feed_enabled = EXCLUDED.newsroom_feed_enabled`,
				t.ID, s.AgencyID, s.registryEnabled(), s.Newsroom)
			if err != nil {
				return fmt.Errorf("tenant %s subscription %s: %w", t.Name, s.AgencyID, err)
			}
		}

		for _, c := range t.Clients {
			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, tenant_id, name, industry, context, focus_areas, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					industry = EXCLUDED.industry,
					context = EXCLUDED.context,
					focus_areas = EXCLUDED.focus_areas,
					is_active = EXCLUDED.is_active`,
				c.ID, t.ID, c.Name, c.Industry, c.Context, c.FocusAreas, c.active())
			if err != nil {
				return fmt.Errorf("tenant %s client %s: %w", t.Name, c.Name, err)
			}
		}
		fmt.Printf("  %s: %d subscriptions, %d clients\n", t.Name, len(t.Subscriptions), len(t.Clients))
	}

	if m := seed.Monitor; m != nil {
		_, err := tx.Exec(ctx, `
			UPDATE monitor_settings SET
				agency_slugs = COALESCE($1, agency_slugs),
				document_types = COALESCE($2, document_types),
				poll_interval_minutes = COALESCE($3, poll_interval_minutes),
				auto_process_new = COALESCE($4, auto_process_new),
				updated_at = now()
			WHERE id = 1`,
			nilIfEmpty(m.AgencySlugs), nilIfEmpty(m.DocumentTypes), m.PollIntervalMinutes, m.AutoProcessNew)
		if err != nil {
			return fmt.Errorf("monitor settings: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
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
