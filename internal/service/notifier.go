// internal/service/notifier.go
package service

import (
	"context"

	"go.uber.org/zap"

	"pos-print-bridge/internal/event"
)

// Alert titles shown to the user
const (
	TitlePrinted       = "Printed"
	TitlePrintError    = "Print Error"
	TitlePrinterBusy   = "Printer busy"
	TitleNotConnected  = "Printer not connected"
	TitleConnectFailed = "Connection failed"
)

// BusNotifier logs alerts and publishes them for connected pages
type BusNotifier struct {
	bus    *event.EventBus
	logger *zap.Logger
}

// NewBusNotifier creates a notifier. bus may be nil to only log.
func NewBusNotifier(bus *event.EventBus, logger *zap.Logger) *BusNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusNotifier{bus: bus, logger: logger.With(zap.String("component", "notifier"))}
}

// Notify publishes an ALERT event
func (n *BusNotifier) Notify(ctx context.Context, title, message string) {
	n.logger.Info("Alert", zap.String("title", title), zap.String("message", message))
	if n.bus == nil {
		return
	}
	n.bus.Publish(event.NewEvent(event.TypeAlert, "dispatcher", map[string]interface{}{
		"title":   title,
		"message": message,
	}))
}
