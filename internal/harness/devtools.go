package harness

import (
	"context"

	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/domain/bridge"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/resilience"
)

// devtoolsGuard stops asking a view for DevTools after repeated failures.
type devtoolsGuard struct {
	opener  bridge.DevToolsOpener
	breaker *resilience.Breaker
}

func newDevToolsGuard(opener bridge.DevToolsOpener, settings resilience.Settings, logger *zap.Logger) *devtoolsGuard {
	settings.OnStateChange = func(name string, from, to resilience.State) {
		logger.Info("DevTools breaker changed state",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &devtoolsGuard{
		opener:  opener,
		breaker: resilience.New("devtools", settings),
	}
}

func (g *devtoolsGuard) OpenDevTools(ctx context.Context) error {
	return g.breaker.Do(ctx, g.opener.OpenDevTools)
}
