package providers

import (
	"github.com/smallbiznis/wastebill/internal/providers/email"
	"github.com/smallbiznis/wastebill/internal/providers/pdf"
	"github.com/smallbiznis/wastebill/internal/providers/sms"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	sms.Module,
	pdf.Module,
)
