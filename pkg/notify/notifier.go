// Package notify defines the notification collaborator that receives
// completion events from the pipeline and the batch engine.
package notify

import (
	"context"

	"github.com/contentcoreio/contentcore/pkg/concurrency"
	"github.com/contentcoreio/contentcore/pkg/content"
	"github.com/contentcoreio/contentcore/pkg/core"
)

// Notifier delivers a content event to interested parties.
type Notifier interface {
	Notify(event *content.Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event *content.Event) error

func (f NotifierFunc) Notify(event *content.Event) error {
	return f(event)
}

// LogNotifier writes events to a Logger. The default collaborator
// when no external notification fan-out is wired in.
type LogNotifier struct {
	logger core.Logger
}

// NewLogNotifier creates a notifier writing to logger.
func NewLogNotifier(logger core.Logger) *LogNotifier {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(event *content.Event) error {
	if event.Record != nil {
		n.logger.Infof("event %s: content %s", event.Type, event.Record.ID)
	} else {
		n.logger.Infof("event %s", event.Type)
	}
	return nil
}

// Dispatch delivers event on the IO pool, fire-and-forget.
// Delivery failures are logged and never reach the caller.
func Dispatch(pools *concurrency.PoolManager, notifier Notifier, logger core.Logger, event *content.Event) {
	if notifier == nil {
		return
	}

	err := pools.Submit(concurrency.IO, concurrency.NewNamedTask("notify:"+string(event.Type), func(ctx context.Context) error {
		if notifyErr := notifier.Notify(event); notifyErr != nil && logger != nil {
			logger.Warnf("notification %s failed: %v", event.Type, notifyErr)
		}
		// Swallowed: notification failures never fail the pool task.
		return nil
	}))
	if err != nil && logger != nil {
		logger.Warnf("failed to dispatch notification %s: %v", event.Type, err)
	}
}
