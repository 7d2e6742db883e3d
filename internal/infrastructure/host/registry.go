package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	domainErrors "github.com/cassiomorais/paysheet/internal/domain/errors"
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
	"github.com/rs/zerolog"
)

type presentedSheet struct {
	delegate   session.Delegate
	lastActive time.Time
}

// Registry is the Presenter for browser checkouts. Presenting a sheet
// registers its delegate so later HTTP calls for the session reach it.
type Registry struct {
	mu     sync.RWMutex
	sheets map[string]*presentedSheet
	logger zerolog.Logger
	now    func() time.Time
}

// NewRegistry creates a new Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sheets: make(map[string]*presentedSheet),
		logger: logger,
		now:    time.Now,
	}
}

func (r *Registry) Present(ctx context.Context, req *sheet.PaymentRequest, delegate session.Delegate) error {
	if delegate == nil {
		return fmt.Errorf("present sheet: %w", domainErrors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sheets[delegate.ID()]; ok {
		return domainErrors.ErrSessionAlreadyActive
	}
	r.sheets[delegate.ID()] = &presentedSheet{delegate: delegate, lastActive: r.now()}

	r.logger.Debug().
		Str("session_id", delegate.ID()).
		Int("summary_items", len(req.SummaryItems)).
		Msg("sheet presented")
	return nil
}

func (r *Registry) Dismiss(ctx context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sheets, sessionID)
}

// Lookup returns the delegate of a presented sheet and marks the sheet as
// active, postponing its expiry.
func (r *Registry) Lookup(sessionID string) (session.Delegate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sheets[sessionID]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	s.lastActive = r.now()
	return s.delegate, nil
}

// Len returns the number of presented sheets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sheets)
}

// Sweep finishes sheets with no activity for ttl, as if the payer had closed
// them. It returns how many were finished.
func (r *Registry) Sweep(ctx context.Context, ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.RLock()
	var expired []session.Delegate
	for _, s := range r.sheets {
		if s.lastActive.Before(cutoff) {
			expired = append(expired, s.delegate)
		}
	}
	r.mu.RUnlock()

	// Finish dismisses through the registry, so it runs without the lock.
	for _, d := range expired {
		d.Finish(ctx)
		r.Dismiss(ctx, d.ID())
	}
	if len(expired) > 0 {
		r.logger.Info().Int("expired", len(expired)).Msg("swept abandoned payment sheets")
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx, ttl)
		}
	}
}
