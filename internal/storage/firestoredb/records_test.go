package firestoredb

import (
	"testing"

	"github.com/LuisEduardoPedra/emissorNFCe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRecordToDomain(t *testing.T) {
	rec := configRecord{
		CNPJ:           "12345678000190",
		LegalName:      "Clube",
		TaxRegime:      3,
		State:          "RS",
		Environment:    1,
		NextNumber:     10,
		MiddlewareAddr: "acbr:3434",
		Active:         true,
	}
	cfg := rec.toDomain("cfg-1")
	assert.Equal(t, "cfg-1", cfg.ID)
	assert.Equal(t, domain.EnvironmentProduction, cfg.Environment)
	assert.Equal(t, "RS", cfg.Address.State)
	assert.False(t, cfg.SimplifiedRegime())
	assert.Nil(t, cfg.TechResponsible)

	rec.TechCNPJ = "98765432000110"
	rec.TechEmail = "rt@example.com"
	cfg = rec.toDomain("cfg-1")
	require.NotNil(t, cfg.TechResponsible)
	assert.Equal(t, "rt@example.com", cfg.TechResponsible.Email)
}

func TestOrderRecordToDomain(t *testing.T) {
	rec := orderRecord{
		Status:   "pago",
		Discount: 5,
		Items: []itemRecord{
			{ProductID: "p1", Name: "Cerveja", Quantity: 2, UnitPrice: 10},
			{ProductID: "p2", Name: "Porção", Quantity: 1, UnitPrice: 25},
		},
		Payments: []paymentRecord{{Method: "dinheiro", Amount: 50, Change: 10}},
	}
	order := rec.toDomain("pedido-1")
	assert.True(t, order.Status.IsPaid())
	require.Len(t, order.Items, 2)
	assert.Equal(t, "20.00", order.Items[0].Total().StringFixed(2))
	assert.Equal(t, "5.00", order.Discount.StringFixed(2))
	require.Len(t, order.Payments, 1)
	assert.Equal(t, "10.00", order.Payments[0].Change.StringFixed(2))
}
