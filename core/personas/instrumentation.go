package personas

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-chef/core/personas"

var logger = otelslog.NewLogger(scopeName)
