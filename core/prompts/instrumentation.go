package prompts

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-dialogue/core/prompts"

var logger = otelslog.NewLogger(scopeName)
