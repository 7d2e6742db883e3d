package host

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDelegate struct {
	id       string
	finished atomic.Int32
}

func (d *stubDelegate) ID() string                            { return d.id }
func (d *stubDelegate) PaymentRequest() *sheet.PaymentRequest { return &sheet.PaymentRequest{} }
func (d *stubDelegate) CouponCodeChanged(context.Context, string) sheet.CouponUpdate {
	return sheet.CouponUpdate{}
}
func (d *stubDelegate) Finish(context.Context) { d.finished.Add(1) }

var _ session.Delegate = (*stubDelegate)(nil)

func TestPlatform_CanMakePaymentsUsingNetworks(t *testing.T) {
	p := NewPlatform(true, []sheet.Network{sheet.NetworkVisa})

	assert.True(t, p.CanMakePayments())
	assert.True(t, p.CanMakePaymentsUsingNetworks(sheet.SupportedNetworks))
	assert.False(t, p.CanMakePaymentsUsingNetworks([]sheet.Network{sheet.NetworkAmex}))
	assert.False(t, p.CanMakePaymentsUsingNetworks(nil))
}

func TestPlatform_Disabled(t *testing.T) {
	p := NewPlatform(false, sheet.SupportedNetworks)

	assert.False(t, p.CanMakePayments())
	assert.False(t, p.CanMakePaymentsUsingNetworks(sheet.SupportedNetworks))
}

func TestRegistry_PresentAndLookup(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	d := &stubDelegate{id: "s-1"}

	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, d))
	assert.Equal(t, 1, r.Len())

	got, err := r.Lookup("s-1")
	require.NoError(t, err)
	assert.Same(t, d, got)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestRegistry_PresentRejectsDuplicate(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	d := &stubDelegate{id: "s-1"}

	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, d))
	err := r.Present(context.Background(), &sheet.PaymentRequest{}, d)
	assert.ErrorIs(t, err, domainErrors.ErrSessionAlreadyActive)
}

func TestRegistry_PresentRejectsNilDelegate(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	err := r.Present(context.Background(), &sheet.PaymentRequest{}, nil)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Dismiss(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, &stubDelegate{id: "s-1"}))

	r.Dismiss(context.Background(), "s-1")
	r.Dismiss(context.Background(), "s-1")

	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	old := &stubDelegate{id: "old"}
	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, old))

	now = now.Add(20 * time.Minute)
	fresh := &stubDelegate{id: "fresh"}
	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, fresh))

	swept := r.Sweep(context.Background(), 15*time.Minute)

	assert.Equal(t, 1, swept)
	assert.Equal(t, int32(1), old.finished.Load())
	assert.Equal(t, int32(0), fresh.finished.Load())
	_, err := r.Lookup("old")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
	_, err = r.Lookup("fresh")
	assert.NoError(t, err)
}

func TestRegistry_SweepSparesActiveSheets(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	busy := &stubDelegate{id: "busy"}
	idle := &stubDelegate{id: "idle"}
	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, busy))
	require.NoError(t, r.Present(context.Background(), &sheet.PaymentRequest{}, idle))

	now = now.Add(10 * time.Minute)
	_, err := r.Lookup("busy")
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	swept := r.Sweep(context.Background(), 15*time.Minute)

	assert.Equal(t, 1, swept)
	assert.Equal(t, int32(0), busy.finished.Load())
	assert.Equal(t, int32(1), idle.finished.Load())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RunSweeperStopsOnCancel(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.RunSweeper(ctx, time.Millisecond, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
