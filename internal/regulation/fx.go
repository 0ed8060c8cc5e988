package regulation

import (
	"github.com/smallbiznis/residence/internal/regulation/repository"
	"github.com/smallbiznis/residence/internal/regulation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("regulation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
