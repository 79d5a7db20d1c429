package local

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-chef/core/transport/local"

var logger = otelslog.NewLogger(scopeName)
