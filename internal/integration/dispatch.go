// Package integration hands accepted and rejected invoices to the owning
// domain modules. The feed, gas, expense and sale modules live outside this
// service and consume these events over their own interfaces.
package integration

import (
	"context"
	"log/slog"
)

// InvoiceEvent describes an invoice whose terminal decision was made.
type InvoiceEvent struct {
	InvoiceID int64
	Number    string
	Module    string
}

// Dispatcher receives terminal invoice decisions.
type Dispatcher interface {
	HandleInvoiceAccepted(ctx context.Context, evt InvoiceEvent) error
	HandleInvoiceRejected(ctx context.Context, evt InvoiceEvent) error
}

// LogDispatcher records dispatches without side effects. It stands in until
// the domain modules register their own handlers.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher constructs the logging dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

var _ Dispatcher = (*LogDispatcher)(nil)

// HandleInvoiceAccepted logs the acceptance.
func (d *LogDispatcher) HandleInvoiceAccepted(ctx context.Context, evt InvoiceEvent) error {
	if d.logger != nil {
		d.logger.Info("invoice accepted, module record pending",
			slog.Int64("invoice_id", evt.InvoiceID),
			slog.String("number", evt.Number),
			slog.String("module", evt.Module),
		)
	}
	return nil
}

// HandleInvoiceRejected logs the rejection.
func (d *LogDispatcher) HandleInvoiceRejected(ctx context.Context, evt InvoiceEvent) error {
	if d.logger != nil {
		d.logger.Info("invoice rejected",
			slog.Int64("invoice_id", evt.InvoiceID),
			slog.String("number", evt.Number),
			slog.String("module", evt.Module),
		)
	}
	return nil
}
