package watchset

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// Discovery supplies the authoritative watched-wallet set. The engine
// treats each refresh result as atomic and never mutates entries in place.
type Discovery interface {
	RefreshWatchSet(ctx context.Context) ([]domain.WatchedWallet, error)
}

// WatchSet holds an immutable address → wallet snapshot. Readers take the
// current snapshot lock-free; Replace swaps the whole map.
type WatchSet struct {
	snapshot atomic.Pointer[map[string]domain.WatchedWallet]
}

// New returns an empty watch set.
func New() *WatchSet {
	ws := &WatchSet{}
	empty := make(map[string]domain.WatchedWallet)
	ws.snapshot.Store(&empty)
	return ws
}

// Replace installs a fresh snapshot built from wallets. Addresses are
// normalized to lowercase.
func (ws *WatchSet) Replace(wallets []domain.WatchedWallet) {
	next := make(map[string]domain.WatchedWallet, len(wallets))
	for _, w := range wallets {
		w.Address = strings.ToLower(w.Address)
		next[w.Address] = w
	}
	ws.snapshot.Store(&next)
}

// Lookup returns the wallet entry for address, if watched.
func (ws *WatchSet) Lookup(address string) (domain.WatchedWallet, bool) {
	m := *ws.snapshot.Load()
	w, ok := m[strings.ToLower(address)]
	return w, ok
}

// Contains reports whether address is in the current snapshot.
func (ws *WatchSet) Contains(address string) bool {
	_, ok := ws.Lookup(address)
	return ok
}

// Len returns the size of the current snapshot.
func (ws *WatchSet) Len() int {
	return len(*ws.snapshot.Load())
}

// Refresher keeps a WatchSet synced with a Discovery collaborator.
type Refresher struct {
	set       *WatchSet
	discovery Discovery
	interval  time.Duration
	logger    *zap.Logger
}

func NewRefresher(set *WatchSet, discovery Discovery, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		set:       set,
		discovery: discovery,
		interval:  interval,
		logger:    logger.Named("watchset"),
	}
}

// RefreshOnce pulls the discovery result and swaps it in.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	wallets, err := r.discovery.RefreshWatchSet(ctx)
	if err != nil {
		return err
	}
	r.set.Replace(wallets)
	r.logger.Info("Watch set refreshed", zap.Int("wallets", len(wallets)))
	return nil
}

// Run refreshes on the configured interval until ctx is cancelled. A failed
// refresh keeps the previous snapshot in place.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Warn("Watch set refresh failed, keeping previous snapshot", zap.Error(err))
			}
		}
	}
}
