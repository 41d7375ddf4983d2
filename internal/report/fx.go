package report

import (
	"github.com/smallbiznis/wastebill/internal/report/repository"
	"github.com/smallbiznis/wastebill/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
