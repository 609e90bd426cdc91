package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/txn"
)

// Registry manages all registered plugins and provides efficient
// dispatch via type-cached interface lists, avoiding a reflect-based
// type switch on every emit.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	onInit                     []OnInit
	onShutdown                 []OnShutdown
	onUsageDebited             []OnUsageDebited
	onDuplicateEventRejected   []OnDuplicateEventRejected
	onInsufficientCredits      []OnInsufficientCredits
	onCreditsAdded             []OnCreditsAdded
	onAutoRefillTriggered      []OnAutoRefillTriggered
	onSubscriptionTransitioned []OnSubscriptionTransitioned
	onAccountCreated           []OnAccountCreated
	onAccountDeleted           []OnAccountDeleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnUsageDebited); ok {
		r.onUsageDebited = append(r.onUsageDebited, v)
	}
	if v, ok := p.(OnDuplicateEventRejected); ok {
		r.onDuplicateEventRejected = append(r.onDuplicateEventRejected, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnCreditsAdded); ok {
		r.onCreditsAdded = append(r.onCreditsAdded, v)
	}
	if v, ok := p.(OnAutoRefillTriggered); ok {
		r.onAutoRefillTriggered = append(r.onAutoRefillTriggered, v)
	}
	if v, ok := p.(OnSubscriptionTransitioned); ok {
		r.onSubscriptionTransitioned = append(r.onSubscriptionTransitioned, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnAccountDeleted); ok {
		r.onAccountDeleted = append(r.onAccountDeleted, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUsageDebited emits a usage-debited event.
func (r *Registry) EmitUsageDebited(ctx context.Context, a *account.Account, t *txn.CreditTransaction) {
	r.mu.RLock()
	plugins := r.onUsageDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageDebited(ctx, a, t)
		}); err != nil {
			r.logger.Warn("plugin OnUsageDebited failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitDuplicateEventRejected emits a duplicate-event-rejected event.
func (r *Registry) EmitDuplicateEventRejected(ctx context.Context, eventID string) {
	r.mu.RLock()
	plugins := r.onDuplicateEventRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDuplicateEventRejected(ctx, eventID)
		}); err != nil {
			r.logger.Warn("plugin OnDuplicateEventRejected failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitInsufficientCredits emits an insufficient-credits event.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, a *account.Account, requiredCents int64) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientCredits(ctx, a, requiredCents)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientCredits failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitCreditsAdded emits a credits-added event.
func (r *Registry) EmitCreditsAdded(ctx context.Context, a *account.Account, t *txn.CreditTransaction) {
	r.mu.RLock()
	plugins := r.onCreditsAdded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditsAdded(ctx, a, t)
		}); err != nil {
			r.logger.Warn("plugin OnCreditsAdded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAutoRefillTriggered emits an auto-refill-triggered event.
func (r *Registry) EmitAutoRefillTriggered(ctx context.Context, a *account.Account, amountCents int64) {
	r.mu.RLock()
	plugins := r.onAutoRefillTriggered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAutoRefillTriggered(ctx, a, amountCents)
		}); err != nil {
			r.logger.Warn("plugin OnAutoRefillTriggered failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscriptionTransitioned emits a subscription-transitioned event.
func (r *Registry) EmitSubscriptionTransitioned(ctx context.Context, a *account.Account, event account.SubscriptionEvent) {
	r.mu.RLock()
	plugins := r.onSubscriptionTransitioned
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionTransitioned(ctx, a, event)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionTransitioned failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAccountCreated emits an account-created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, a *account.Account) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, a)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAccountDeleted emits an account-deleted event.
func (r *Registry) EmitAccountDeleted(ctx context.Context, userID string) {
	r.mu.RLock()
	plugins := r.onAccountDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountDeleted(ctx, userID)
		}); err != nil {
			r.logger.Warn("plugin OnAccountDeleted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout. Plugins
// should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
