package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/store"
)

// Dispatcher drains the messaging service's event channels. Inbound
// responses run through the reply pipeline and the composed reply is sent
// back over the same service; receipts are persisted for the admin API.
// Without a running dispatcher the channels fill up and the service starts
// dropping events, so Start must be called once after the service starts.
type Dispatcher struct {
	service Service
	reply   *ReplyHandler
	data    store.Store
}

// NewDispatcher creates a dispatcher over the given service.
func NewDispatcher(service Service, reply *ReplyHandler, data store.Store) *Dispatcher {
	return &Dispatcher{service: service, reply: reply, data: data}
}

// Start launches the consumer goroutines. They exit when the service's
// channels close (after Stop) or the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.consumeResponses(ctx)
	go d.consumeReceipts(ctx)
	slog.Info("Dispatcher.Start: channel consumers started")
}

func (d *Dispatcher) consumeResponses(ctx context.Context) {
	defer slog.Debug("Dispatcher.consumeResponses: stopped")

	for {
		select {
		case response, ok := <-d.service.Responses():
			if !ok {
				return
			}
			reply, err := d.reply.Handle(response.From, response.Body, time.Now())
			if err != nil {
				slog.Error("Dispatcher.consumeResponses: reply pipeline failed", "error", err, "from", response.From)
				continue
			}
			if reply == "" {
				continue
			}
			if err := d.service.SendMessage(ctx, response.From, reply); err != nil {
				slog.Error("Dispatcher.consumeResponses: failed to send reply", "error", err, "to", response.From)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) consumeReceipts(ctx context.Context) {
	defer slog.Debug("Dispatcher.consumeReceipts: stopped")

	for {
		select {
		case receipt, ok := <-d.service.Receipts():
			if !ok {
				return
			}
			if err := d.data.AddReceipt(receipt); err != nil {
				slog.Warn("Dispatcher.consumeReceipts: failed to store receipt", "error", err, "to", receipt.To)
			}
		case <-ctx.Done():
			return
		}
	}
}
