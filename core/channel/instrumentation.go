package channel

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-dialogue/core/channel"

var logger = otelslog.NewLogger(scopeName)
