package monetization

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/interledger/web-monetization-go/core"
)

// GrantSource is the slice of the grant lifecycle service sessions consume:
// an optimistic token read plus a deduplicated refresh for when the read
// token turns out stale. *core.Service satisfies it.
type GrantSource interface {
	ActiveToken() (core.AccessToken, bool)
	RefreshActiveToken(ctx context.Context, staleValue string) (core.AccessToken, error)
}

// Deps carries the collaborators every payment manager shares.
type Deps struct {
	Wallet  core.WalletClient
	Grants  GrantSource
	Sender  core.WalletAddress
	Events  EventPublisher
	Logger  core.Logger
	Metrics core.MetricsRecorder
	Config  core.Config
	Now     func() time.Time
}

func (d Deps) validate() error {
	if d.Wallet == nil {
		return goerrors.New("monetization: wallet client is required", goerrors.CategoryValidation)
	}
	if d.Grants == nil {
		return goerrors.New("monetization: grant source is required", goerrors.CategoryValidation)
	}
	if err := d.Sender.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "monetization: sender wallet is invalid")
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	d.Logger = glog.Ensure(d.Logger)
	if d.Events == nil {
		d.Events = NopEventPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = core.NopMetricsRecorder{}
	}
	if d.Config.PaymentTickInterval <= 0 {
		d.Config = core.DefaultConfig()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Registry is the explicit tab arena: one PaymentManager per browser tab,
// removed through HandleTabClosed when the tab controller reports closure.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	managers map[int]*PaymentManager
}

func NewRegistry(deps Deps) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Registry{
		deps:     deps.withDefaults(),
		managers: make(map[int]*PaymentManager),
	}, nil
}

// Manager returns the tab's payment manager, creating it on first use.
func (r *Registry) Manager(tabID int) *PaymentManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	manager, ok := r.managers[tabID]
	if !ok {
		manager = newPaymentManager(tabID, r.deps)
		r.managers[tabID] = manager
	}
	return manager
}

// Lookup returns the tab's manager without creating one.
func (r *Registry) Lookup(tabID int) (*PaymentManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	manager, ok := r.managers[tabID]
	return manager, ok
}

// HandleTabClosed stops every session belonging to the tab and drops its
// manager from the arena. Safe to call for unknown tabs.
func (r *Registry) HandleTabClosed(tabID int) {
	r.mu.Lock()
	manager, ok := r.managers[tabID]
	delete(r.managers, tabID)
	r.mu.Unlock()

	if !ok {
		return
	}
	manager.stopAll()
	r.deps.Logger.Info("payment manager removed", "tab_id", tabID)
}

// Tabs lists the tab ids currently holding a manager.
func (r *Registry) Tabs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.managers))
	for tabID := range r.managers {
		out = append(out, tabID)
	}
	return out
}
