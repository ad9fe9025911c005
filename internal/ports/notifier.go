package ports

import "context"

// Notifier surfaces cycle/monitor summaries to an operator channel. The
// HTTP admin surface and cmd/tradercli both consume the same summaries
// through the store's read views; Notifier is for push-style side
// channels (e.g. a console or chat webhook) and is optional at wiring time.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// NopNotifier discards every notification. Used when no notifier is
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
