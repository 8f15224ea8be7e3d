package conversation

import (
	"context"

	"github.com/wvdi-ph/drivebot/internal/observability/metrics"
	"github.com/wvdi-ph/drivebot/pkg/logging"
)

// FallbackProvider composes an ordered list of providers into one logical
// provider. Chat tries each in priority order and short-circuits on the first
// success; fallback is sequential, never parallel, so a flaky primary cannot
// cause duplicate billable calls.
type FallbackProvider struct {
	providers []Provider
	logger    *logging.Logger
	metrics   *metrics.PipelineMetrics
}

// NewFallbackProvider creates a router over the given providers in priority
// order. At least one provider is required. metrics may be nil.
func NewFallbackProvider(providers []Provider, logger *logging.Logger, m *metrics.PipelineMetrics) *FallbackProvider {
	if len(providers) == 0 {
		panic("conversation: at least one provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackProvider{providers: providers, logger: logger, metrics: m}
}

// Order returns the configured provider names in priority order.
func (f *FallbackProvider) Order() []string {
	order := make([]string, len(f.providers))
	for i, p := range f.providers {
		order[i] = p.Name()
	}
	return order
}

// Chat tries each provider in order and returns the first success, annotated
// with the provider that served it. When every provider fails, the aggregate
// error enumerates each failure.
func (f *FallbackProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	var attempts []ProviderAttempt

	for i, provider := range f.providers {
		reply, err := provider.Chat(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.Info("chat served by fallback provider",
					"provider", provider.Name(),
					"failed_attempts", len(attempts),
				)
				f.metrics.ObserveFallback(provider.Name())
			}
			return &ChatResult{
				Content:  reply,
				Provider: provider.Name(),
				Model:    provider.Model(),
			}, nil
		}

		f.logger.Warn("provider chat failed, trying next",
			"provider", provider.Name(),
			"error", err.Error(),
			"remaining", len(f.providers)-i-1,
		)
		attempts = append(attempts, ProviderAttempt{Provider: provider.Name(), Err: err})
	}

	return nil, &AllProvidersError{Attempts: attempts}
}

// HealthCheck probes providers in priority order and returns the first one
// reporting available, annotated with the full fallback order. When none are
// available the status carries the attempted order and the last error.
func (f *FallbackProvider) HealthCheck(ctx context.Context) HealthStatus {
	order := f.Order()

	var last HealthStatus
	for _, provider := range f.providers {
		status := provider.HealthCheck(ctx)
		if status.Available {
			status.Order = order
			return status
		}
		last = status
	}

	last.Order = order
	last.Available = false
	return last
}
