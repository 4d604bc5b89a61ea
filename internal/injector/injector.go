//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/observability/log"
)

func InitializeApp(cfg config.Config) (*App, func(), error) {
	wire.Build(
		ProvideLogger,
		wire.Bind(new(log.Log), new(*log.Logger)),
		ProvideBus,
		ProvideLoop,
		ProvideHost,
		ProvideEngine,
		ProvideServer,
		ProvideLedger,
		ProvideRecorder,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
