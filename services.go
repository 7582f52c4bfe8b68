// Package webmonetization re-exports the core surface so hosts can depend on
// a single import path for configuration, construction and the common types.
package webmonetization

import (
	"github.com/interledger/web-monetization-go/core"
	"github.com/interledger/web-monetization-go/monetization"
)

type Config = core.Config

type PollingConfig = core.PollingConfig

type Option = core.Option

type Service = core.Service

type Storage = core.Storage
type WalletClient = core.WalletClient
type TabController = core.TabController
type WalletKeyRegistrar = core.WalletKeyRegistrar
type MetricsRecorder = core.MetricsRecorder

type WalletAddress = core.WalletAddress
type GrantAmount = core.GrantAmount
type AccessGrant = core.AccessGrant
type AccessToken = core.AccessToken
type GrantType = core.GrantType
type GrantSnapshot = core.GrantSnapshot

type Registry = monetization.Registry
type RegistryDeps = monetization.Deps
type PaymentManager = monetization.PaymentManager

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStorage         = core.WithStorage
	WithWalletClient    = core.WithWalletClient
	WithTabController   = core.WithTabController
	WithKeyRegistrar    = core.WithKeyRegistrar
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// NewPaymentRegistry builds the per-tab payment arena. Hosts typically pass
// the same wallet client and config they handed to NewService, with the
// service itself as the grant source.
func NewPaymentRegistry(deps RegistryDeps) (*Registry, error) {
	return monetization.NewRegistry(deps)
}
