package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementNextStartsAtOne(t *testing.T) {
	s := NewStore()
	s.PutConfig(domain.EmitterConfig{ID: "cfg-1"})
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrementNext(ctx, "cfg-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := s.IncrementNext(ctx, "cfg-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPersistEmissionResult(t *testing.T) {
	s := NewStore()
	s.PutOrder(domain.FiscalOrder{ID: "p-1", Status: domain.OrderStatusPaid})
	ctx := context.Background()

	_, err := s.FetchLatestResult(ctx, "p-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.PersistEmissionResult(ctx, "p-1", domain.EmissionResult{ID: "a", Number: 1, Status: domain.RecordRejected}))
	require.NoError(t, s.PersistEmissionResult(ctx, "p-1", domain.EmissionResult{ID: "b", Number: 2, Status: domain.RecordAuthorized}))

	latest, err := s.FetchLatestResult(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Number)

	latest.Status = domain.RecordCancelled
	require.NoError(t, s.PersistEmissionResult(ctx, "p-1", latest))

	results := s.Results("p-1")
	require.Len(t, results, 2, "mesmo ID substitui a tentativa")
	assert.Equal(t, domain.RecordCancelled, results[1].Status)

	order, err := s.FetchPayableOrder(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
}

func TestLoadSeed(t *testing.T) {
	s := NewStore()
	seed := `{
		"configs": [{"id": "cfg-1", "cnpj": "12345678000190", "legal_name": "Clube", "tax_regime": 1,
			"environment": 2, "series": "1", "next_number": 10, "middleware_addr": "acbr:3434", "active": true}],
		"orders": [{"id": "p-1", "status": "pago", "discount": "0",
			"items": [{"product_id": "chopp", "name": "Chopp", "quantity": "2", "unit_price": "10.50"}],
			"payments": [{"method": "pix", "amount": "21.00"}]}]
	}`
	require.NoError(t, s.LoadSeed(strings.NewReader(seed)))
	ctx := context.Background()

	cfg, err := s.FetchEmitterConfig(ctx, "cfg-1")
	require.NoError(t, err)
	assert.True(t, cfg.Active)
	assert.Equal(t, int64(10), cfg.NextNumber)

	order, err := s.FetchPayableOrder(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, order.Status.IsPaid())
	require.Len(t, order.Items, 1)
	assert.Equal(t, "21.00", order.Items[0].Total().StringFixed(2))

	n, err := s.IncrementNext(ctx, "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestLoadSeedInvalid(t *testing.T) {
	assert.Error(t, NewStore().LoadSeed(strings.NewReader(`{"configs": [`)))
	assert.Error(t, NewStore().LoadSeed(strings.NewReader(`{"pedidos": []}`)))
	assert.ErrorIs(t, NewStore().LoadSeed(strings.NewReader(`{"configs": [{"cnpj": "1"}]}`)), domain.ErrConfiguration)
}
