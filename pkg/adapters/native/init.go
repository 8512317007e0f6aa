package native

import (
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func init() {
	adapter.Register("native", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
