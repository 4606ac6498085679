package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestUpdateSettings_Validation(t *testing.T) {
	tests := []struct {
		name   string
		update *models.MonitorSettingsUpdate
	}{
		{name: "nil", update: nil},
		{name: "empty", update: &models.MonitorSettingsUpdate{}},
		{name: "interval too small", update: &models.MonitorSettingsUpdate{PollIntervalMinutes: intPtr(0)}},
		{name: "interval too large", update: &models.MonitorSettingsUpdate{PollIntervalMinutes: intPtr(1441)}},
		{name: "initial count zero", update: &models.MonitorSettingsUpdate{InitialDocumentCount: intPtr(0)}},
		{name: "poll count too large", update: &models.MonitorSettingsUpdate{PollDocumentCount: intPtr(101)}},
		{name: "empty slug", update: &models.MonitorSettingsUpdate{AgencySlugs: &[]string{"cms", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.monitor.UpdateSettings(context.Background(), tt.update)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 15, env.store.settings.PollIntervalMinutes)
		})
	}
}

func TestUpdateSettings_PartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	disabled := false

	settings, err := env.monitor.UpdateSettings(context.Background(), &models.MonitorSettingsUpdate{
		IsEnabled:           &disabled,
		PollIntervalMinutes: intPtr(60),
	})
	require.NoError(t, err)
	assert.False(t, settings.IsEnabled)
	assert.Equal(t, 60, settings.PollIntervalMinutes)
	assert.Equal(t, 20, settings.PollDocumentCount, "untouched fields keep their value")
	assert.True(t, settings.AutoProcessNew)
}

func TestMonitorStatus(t *testing.T) {
	env := newTestEnv(t)
	env.storeDocument(t, "2024-00123")
	env.storeDocument(t, "2024-00124")

	status, err := env.monitor.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalDocuments)
	assert.Equal(t, 2, status.DocumentsLast24)
	assert.Len(t, status.RecentDocuments, 2)
	require.NotNil(t, status.Settings)
	assert.True(t, status.Settings.IsEnabled)
}

func TestCheckNow(t *testing.T) {
	env := newTestEnv(t)
	env.addMemoTenant("Acme", true)
	env.registry.FetchFunc = registryReturning(registryDoc("2024-00123"))

	res, err := env.monitor.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewDocuments)
	assert.Equal(t, 1, res.OutputsCreated)
}

func TestReprocess_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.monitor.Reprocess(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
