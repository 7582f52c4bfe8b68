package core

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/interledger/web-monetization-go/dedup"
)

// Service is the grant lifecycle manager: it owns the two spending grant
// slots, negotiates them interactively, rotates their tokens and switches
// between them when one is exhausted.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	storage         Storage
	wallet          WalletClient
	tabs            TabController
	keyRegistrar    WalletKeyRegistrar
	now             func() time.Time

	mu     sync.Mutex
	slots  map[GrantType]*grantSlot
	active GrantType

	// Both are funneled through dedup so two sessions independently
	// discovering a stale token trigger exactly one rotation.
	rotate     func(ctx context.Context, _ struct{}) (AccessToken, error)
	switchCall func(ctx context.Context, _ struct{}) (GrantType, error)
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("monetization", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("monetization"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.storage == nil {
		builder.storage = NewMemoryStorage()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.wallet == nil {
		return nil, mapBuildError(builder.errorMapper,
			goerrors.New("core: wallet client is required", goerrors.CategoryValidation))
	}
	if builder.tabs == nil {
		return nil, mapBuildError(builder.errorMapper,
			goerrors.New("core: tab controller is required", goerrors.CategoryValidation))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	service := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		storage:         builder.storage,
		wallet:          builder.wallet,
		tabs:            builder.tabs,
		keyRegistrar:    builder.keyRegistrar,
		now:             builder.now,
		slots: map[GrantType]*grantSlot{
			GrantTypeRecurring: {},
			GrantTypeOneTime:   {},
		},
	}

	service.rotate = dedup.Wrap(service.rotateActiveToken, dedup.Options{
		Duration: finalConfig.DedupeCacheDuration,
	})
	service.switchCall = dedup.Wrap(service.switchActiveGrant, dedup.Options{
		Duration: finalConfig.DedupeCacheDuration,
	})

	return service, nil
}

// Config returns the resolved configuration.
func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
