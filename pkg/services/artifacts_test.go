package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

func TestListDocuments_SubscribedAgenciesOnly(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	cms := env.storeDocument(t, "2024-00123")

	inserted, err := env.docs.InsertIfAbsent(context.Background(), &models.RegulatoryDocument{
		Source:     models.DocumentSourceFederalRegister,
		ExternalID: "2024-00999",
		AgencyID:   "fda",
		Title:      "Food Labeling; Nutrient Content Claims",
	})
	require.NoError(t, err)
	require.True(t, inserted)

	page, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID})
	require.NoError(t, err)

	require.Len(t, page.Documents, 1)
	assert.Equal(t, cms.ID, page.Documents[0].Document.ID)
	require.NotNil(t, page.Documents[0].Output)
	assert.Equal(t, tenant.ID, page.Documents[0].Output.TenantID)
	assert.Equal(t, Pagination{Total: 1, Limit: DefaultDocumentPageSize}, page.Pagination)
}

func TestListDocuments_StatusFilterAndPaging(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	done := env.storeDocument(t, "2024-00001")
	env.storeDocument(t, "2024-00002")
	env.storeDocument(t, "2024-00003")

	res, err := env.base.Generate(context.Background(), GenerateBaseRequest{DocumentID: done.ID, TenantID: tenant.ID})
	require.NoError(t, err)
	require.False(t, res.Failed())

	page, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{
		TenantID: tenant.ID,
		Status:   models.OutputStatusComplete,
	})
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, done.ID, page.Documents[0].Document.ID)
	assert.Equal(t, models.OutputStatusComplete, page.Documents[0].Output.Status)

	first, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Documents, 2)
	assert.Equal(t, "2024-00003", first.Documents[0].Document.ExternalID)
	assert.Equal(t, 3, first.Pagination.Total)
	assert.True(t, first.Pagination.HasMore)

	second, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, second.Documents, 1)
	assert.Equal(t, "2024-00001", second.Documents[0].Document.ExternalID)
	assert.False(t, second.Pagination.HasMore)
}

func TestListDocuments_EmptyPageIsNotNil(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)

	page, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID, Limit: 500})
	require.NoError(t, err)
	assert.NotNil(t, page.Documents)
	assert.Empty(t, page.Documents)
	assert.Equal(t, MaxDocumentPageSize, page.Pagination.Limit)
}

func TestListDocuments_RejectsBadParameters(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)

	_, err := env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID, Status: "shipped"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.reads.ListDocuments(context.Background(), ListDocumentsRequest{TenantID: tenant.ID, Offset: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
