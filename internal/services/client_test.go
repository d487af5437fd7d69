package services

import (
	"context"
	"math"
	"testing"

	"github.com/diewo77/go-erp/internal/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Clients.Create(ctx, ClientInput{Name: "   "})
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, err = f.Clients.Create(ctx, ClientInput{Name: "Initech", Country: "US"})
	require.NoError(t, err)

	got, err := f.Clients.Get(ctx, f.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing@acme.test", got.Email)

	_, err = f.Clients.Get(ctx, 9999)
	assert.ErrorIs(t, err, billing.ErrNotFound)

	clients, count, err := f.Clients.List(ctx, "init", Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "Initech", clients[0].Name)
}

func TestPaymentModeService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wire, err := f.Modes.Create(ctx, PaymentModeInput{Name: "Wire", IsDefault: true, Enabled: true})
	require.NoError(t, err)

	_, err = f.Modes.Create(ctx, PaymentModeInput{Name: "Wire", Enabled: true})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.Modes.Create(ctx, PaymentModeInput{Name: "Off", IsDefault: true})
	assert.ErrorIs(t, err, billing.ErrValidation)

	modes, err := f.Modes.List(ctx)
	require.NoError(t, err)
	require.Len(t, modes, 2)
	assert.Equal(t, wire.ID, modes[0].ID, "new default listed first")
	assert.False(t, modes[1].IsDefault, "only one default remains")
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Items: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, MaxPageSize, Page{Items: 5000}.Normalize().Items)
	huge := Page{Page: math.MaxInt, Items: 5000}.Normalize()
	assert.Equal(t, MaxPage, huge.Page)
	assert.Positive(t, huge.Offset())
	p := Page{Page: 3, Items: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 3, p.Pages(41))
	assert.Equal(t, 0, p.Pages(0))
}
