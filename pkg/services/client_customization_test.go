package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// completedBase stores a routed document and generates the tenant's base output.
func (e *testEnv) completedBase(t *testing.T, tenant *models.Tenant) *models.RegulatoryDocument {
	t.Helper()
	doc := e.storeDocument(t, "2024-00123")
	res, err := e.base.Generate(context.Background(), GenerateBaseRequest{DocumentID: doc.ID, TenantID: tenant.ID})
	require.NoError(t, err)
	require.Equal(t, models.OutputStatusComplete, res.Output.Status)
	return doc
}

func clientIDs(clients []*models.Client) []uuid.UUID {
	ids := make([]uuid.UUID, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	return ids
}

func TestGenerateClients_OneFailureDoesNotAffectOthers(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Client 1", "Client 2", "Client 3", "Client 4", "Client 5")
	doc := env.completedBase(t, tenant)

	env.llm.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Prompt, "Client 3") {
			return nil, errModelDown
		}
		return memoResponder(ctx, req)
	}

	results, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID,
		TenantID:   tenant.ID,
		ClientIDs:  clientIDs(clients),
		SelectedBy: "analyst@acme.test",
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, r := range results {
		name := fmt.Sprintf("Client %d", i+1)
		assert.Equal(t, clients[i].ID, r.ClientID, "results keep request order")
		assert.Equal(t, name, r.ClientName)
		require.NotNil(t, r.Output, name)

		if name == "Client 3" {
			assert.Equal(t, models.OutputStatusFailed, r.Output.Status)
			assert.Contains(t, r.Error, "generation error")
			assert.Nil(t, r.Output.OutputPath)
			continue
		}
		assert.Empty(t, r.Error, name)
		assert.Equal(t, models.OutputStatusComplete, r.Output.Status)
		require.NotNil(t, r.Output.OutputPath)
		assert.Equal(t, storage.ClientPath(tenant.ID, "2024-00123", clients[i].ID, name, "pdf"), *r.Output.OutputPath)
		assert.True(t, r.Output.SelectedForGeneration)
		require.NotNil(t, r.Output.SelectedBy)
		assert.Equal(t, "analyst@acme.test", *r.Output.SelectedBy)

		ok, err := env.blobs.Exists(context.Background(), *r.Output.OutputPath)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	outputs, err := env.clients.ListForDocument(context.Background(), doc.ID, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, outputs, 5)
}

func TestGenerateClients_CustomizesFromStoredBaseText(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Mercy Hospital")
	doc := env.completedBase(t, tenant)

	_, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(clients),
	})
	require.NoError(t, err)

	reqs := env.llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "custom-model", reqs[1].Model)
	assert.Contains(t, reqs[1].Prompt, "Conversion factor increases by 2.9 percent")
	assert.Contains(t, reqs[1].Prompt, "Mercy Hospital")
}

func TestGenerateClients_RequiresCompleteBase(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Mercy Hospital")
	doc := env.storeDocument(t, "2024-00123")

	_, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(clients),
	})
	assert.ErrorIs(t, err, apperrors.ErrBaseNotComplete)
	assert.Equal(t, 0, env.llm.Calls())
}

func TestGenerateClients_NoMatchingClients(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	other := env.addMemoTenant("Globex", true)
	foreign := env.addClients(other, "Someone Else")
	doc := env.completedBase(t, tenant)

	_, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(foreign),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGenerateClients_UnknownIDReportedPerItem(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Mercy Hospital")
	doc := env.completedBase(t, tenant)
	unknown := uuid.New()

	results, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: []uuid.UUID{unknown, clients[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, unknown, results[0].ClientID)
	assert.Equal(t, "client not found or inactive", results[0].Error)
	assert.Nil(t, results[0].Output)
	assert.Empty(t, results[1].Error)
	assert.Equal(t, models.OutputStatusComplete, results[1].Output.Status)
}

func TestGenerateClients_CompleteOutputIsNotRegenerated(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Mercy Hospital")
	doc := env.completedBase(t, tenant)
	req := GenerateClientsRequest{DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(clients)}

	_, err := env.clients.GenerateClients(context.Background(), req)
	require.NoError(t, err)
	calls := env.llm.Calls()

	results, err := env.clients.GenerateClients(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.OutputStatusComplete, results[0].Output.Status)
	assert.Equal(t, calls, env.llm.Calls())
}

func TestGenerateClients_EachWorkerAcquiresTenantScope(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "Client 1", "Client 2", "Client 3")
	doc := env.completedBase(t, tenant)

	var acquired, released atomic.Int32
	tenantCtx := func(ctx context.Context, id uuid.UUID) (context.Context, func(), error) {
		assert.Equal(t, tenant.ID, id)
		acquired.Add(1)
		return ctx, func() { released.Add(1) }, nil
	}

	svc := NewClientCustomizationService(env.docs, &memTenantRepo{s: env.store}, &memClientRepo{s: env.store},
		&memBaseOutputRepo{s: env.store}, &memClientOutputRepo{s: env.store}, env.generator, env.blobs,
		llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 3}, zap.NewNop()), tenantCtx, zap.NewNop())

	results, err := svc.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(clients),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(3), acquired.Load())
	assert.Equal(t, int32(3), released.Load())
}

func TestGenerateClients_NamesThatSanitizeAlikeGetSeparateArtifacts(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.addMemoTenant("Acme", true)
	clients := env.addClients(tenant, "中国银行", "工商银行")
	doc := env.completedBase(t, tenant)

	results, err := env.clients.GenerateClients(context.Background(), GenerateClientsRequest{
		DocumentID: doc.ID, TenantID: tenant.ID, ClientIDs: clientIDs(clients),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	paths := make([]string, 0, 2)
	for _, r := range results {
		require.Empty(t, r.Error)
		require.NotNil(t, r.Output.OutputPath)
		paths = append(paths, *r.Output.OutputPath)

		ok, err := env.blobs.Exists(context.Background(), *r.Output.OutputPath)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NotEqual(t, paths[0], paths[1])
	assert.Contains(t, paths[0], clients[0].ID.String())
	assert.Contains(t, paths[1], clients[1].ID.String())
}
