package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// MonitorSettingsRepository reads and updates the single poller settings row.
type MonitorSettingsRepository interface {
	Get(ctx context.Context) (*models.MonitorSettings, error)
	Update(ctx context.Context, update *models.MonitorSettingsUpdate) (*models.MonitorSettings, error)
	// RecordPoll stores the outcome of a completed poll and marks the monitor initialized.
	RecordPoll(ctx context.Context, at time.Time, status string, documentsFound int) error
	// RecordPollError stores a failed poll without touching the initialized flag.
	RecordPollError(ctx context.Context, at time.Time, status string) error
}

type monitorSettingsRepository struct{}

// NewMonitorSettingsRepository creates a new MonitorSettingsRepository.
func NewMonitorSettingsRepository() MonitorSettingsRepository {
	return &monitorSettingsRepository{}
}

var _ MonitorSettingsRepository = (*monitorSettingsRepository)(nil)

const monitorSettingsSelect = `
	SELECT id, is_enabled, poll_interval_minutes, agency_slugs, document_types,
	       only_significant, auto_process_new, initialized, initial_document_count,
	       poll_document_count, last_poll_at, last_poll_status, last_poll_documents_found, updated_at
	FROM monitor_settings WHERE id = 1`

func (r *monitorSettingsRepository) Get(ctx context.Context) (*models.MonitorSettings, error) {
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}
	var s models.MonitorSettings
	err = c.QueryRow(ctx, monitorSettingsSelect).Scan(
		&s.ID, &s.IsEnabled, &s.PollIntervalMinutes, &s.AgencySlugs, &s.DocumentTypes,
		&s.OnlySignificant, &s.AutoProcessNew, &s.Initialized, &s.InitialDocumentCount,
		&s.PollDocumentCount, &s.LastPollAt, &s.LastPollStatus, &s.LastPollDocumentsFound, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor settings: %w", err)
	}
	return &s, nil
}

func (r *monitorSettingsRepository) Update(ctx context.Context, u *models.MonitorSettingsUpdate) (*models.MonitorSettings, error) {
	if u == nil || u.IsEmpty() {
		return r.Get(ctx)
	}
	c, err := conn(ctx)
	if err != nil {
		return nil, err
	}

	q := psql.Update("monitor_settings").Set("updated_at", time.Now()).Where("id = 1")
	if u.IsEnabled != nil {
		q = q.Set("is_enabled", *u.IsEnabled)
	}
	if u.PollIntervalMinutes != nil {
		q = q.Set("poll_interval_minutes", *u.PollIntervalMinutes)
	}
	if u.AgencySlugs != nil {
		q = q.Set("agency_slugs", *u.AgencySlugs)
	}
	if u.DocumentTypes != nil {
		q = q.Set("document_types", *u.DocumentTypes)
	}
	if u.OnlySignificant != nil {
		q = q.Set("only_significant", *u.OnlySignificant)
	}
	if u.AutoProcessNew != nil {
		q = q.Set("auto_process_new", *u.AutoProcessNew)
	}
	if u.InitialDocumentCount != nil {
		q = q.Set("initial_document_count", *u.InitialDocumentCount)
	}
	if u.PollDocumentCount != nil {
		q = q.Set("poll_document_count", *u.PollDocumentCount)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build settings update: %w", err)
	}
	if _, err := c.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update monitor settings: %w", err)
	}
	return r.Get(ctx)
}

func (r *monitorSettingsRepository) RecordPoll(ctx context.Context, at time.Time, status string, documentsFound int) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `
		UPDATE monitor_settings
		SET initialized = TRUE, last_poll_at = $1, last_poll_status = $2,
		    last_poll_documents_found = $3, updated_at = $1
		WHERE id = 1`, at, status, documentsFound)
	if err != nil {
		return fmt.Errorf("failed to record poll: %w", err)
	}
	return nil
}

func (r *monitorSettingsRepository) RecordPollError(ctx context.Context, at time.Time, status string) error {
	c, err := conn(ctx)
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, `
		UPDATE monitor_settings
		SET last_poll_at = $1, last_poll_status = $2, updated_at = $1
		WHERE id = 1`, at, status)
	if err != nil {
		return fmt.Errorf("failed to record poll error: %w", err)
	}
	return nil
}
