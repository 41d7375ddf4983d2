package mpesa

import (
	"github.com/smallbiznis/wastebill/internal/mpesa/repository"
	"github.com/smallbiznis/wastebill/internal/mpesa/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mpesa.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
