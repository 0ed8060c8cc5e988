package acceptance

import (
	"github.com/smallbiznis/residence/internal/acceptance/repository"
	"github.com/smallbiznis/residence/internal/acceptance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("acceptance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
