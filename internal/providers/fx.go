package providers

import (
	"github.com/smallbiznis/residence/internal/providers/email"
	"github.com/smallbiznis/residence/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
