package consumption

import (
	"github.com/smallbiznis/residence/internal/consumption/repository"
	"github.com/smallbiznis/residence/internal/consumption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consumption.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewContractResolver),
	fx.Provide(service.NewService),
)
