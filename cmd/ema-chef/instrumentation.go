package main

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-chef/cmd/ema-chef"

var logger = otelslog.NewLogger(scopeName)
