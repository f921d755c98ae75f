package ledger

import (
	"go.uber.org/fx"

	"github.com/vendora/promokit/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
