package orchestration

import events "github.com/koscakluka/ema-dialogue/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newLoggingEventEmitter(callback func(events.Event)) eventEmitter {
	return func(event events.Event) {
		logger.Debug("session event", "kind", string(event.Kind()))
		if callback != nil {
			callback(event)
		}
	}
}
