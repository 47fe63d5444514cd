// internal/service/dispatcher.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/escpos"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/receipt"
	"pos-print-bridge/internal/repository"
	"pos-print-bridge/internal/utils"
)

// DispatcherOptions tunes the print sequence
type DispatcherOptions struct {
	NetworkSettle   time.Duration
	DiscoverySettle time.Duration
	ResetSettle     time.Duration
	// QueueDepth is how many jobs may wait behind the one printing
	QueueDepth int
	JobTimeout time.Duration
}

// DispatcherOptionsFromConfig builds options from configuration
func DispatcherOptionsFromConfig(cfg *config.PrinterConfig) DispatcherOptions {
	return DispatcherOptions{
		NetworkSettle:   cfg.NetworkSettle,
		DiscoverySettle: cfg.DiscoverySettle,
		ResetSettle:     cfg.ResetSettle,
		QueueDepth:      cfg.QueueDepth,
		JobTimeout:      cfg.JobTimeout,
	}
}

// Dispatcher turns print requests into bytes on the connected printer
type Dispatcher struct {
	builder  *receipt.Builder
	bt       BluetoothTransport
	net      NetworkTransport
	jobs     repository.JobRepository
	notifier Notifier
	bus      *event.EventBus
	opts     DispatcherOptions
	logger   *utils.ServiceLogger

	slots   chan struct{}
	printMu sync.Mutex
}

// NewDispatcher creates a dispatcher. Any transport may be nil.
func NewDispatcher(
	builder *receipt.Builder,
	bt BluetoothTransport,
	net NetworkTransport,
	jobs repository.JobRepository,
	notifier Notifier,
	bus *event.EventBus,
	opts DispatcherOptions,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = receipt.NewBuilder(nil, logger)
	}
	if jobs == nil {
		jobs = repository.NewMemoryJobRepository(0)
	}
	if notifier == nil {
		notifier = NewBusNotifier(bus, logger)
	}
	if opts.QueueDepth < 0 {
		opts.QueueDepth = 0
	}

	return &Dispatcher{
		builder:  builder,
		bt:       bt,
		net:      net,
		jobs:     jobs,
		notifier: notifier,
		bus:      bus,
		opts:     opts,
		logger:   utils.NewServiceLogger(logger, "print-dispatcher"),
		slots:    make(chan struct{}, 1+opts.QueueDepth),
	}
}

// HandlePrintRequest prints a receipt on the preferred connected transport.
// payload may be a JSON string, bytes, json.RawMessage or any value that marshals to JSON.
func (d *Dispatcher) HandlePrintRequest(ctx context.Context, source model.JobSource, payload interface{}) (*model.PrintResult, error) {
	return d.dispatch(ctx, source, payload, model.TransportNone)
}

// PrintSample prints the built-in sample receipt on a specific transport
func (d *Dispatcher) PrintSample(ctx context.Context, transport model.TransportType) (*model.PrintResult, error) {
	switch transport {
	case model.TransportBluetooth, model.TransportNetwork, model.TransportNone:
	default:
		return nil, fmt.Errorf("unknown transport: %s", transport)
	}
	return d.dispatch(ctx, model.JobSourceSample, receipt.SampleReceipt, transport)
}

// Listen prints every PRINT_JSON event until ctx is done
func (d *Dispatcher) Listen(ctx context.Context, bus *event.EventBus) {
	events := bus.Subscribe(event.TypePrintJSON)
	defer bus.Unsubscribe(event.TypePrintJSON, events)

	d.logger.Info("Print listener started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Print listener stopped")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			source := model.JobSourceEvent
			if s, ok := ev.Data["source"].(string); ok && s != "" {
				source = model.JobSource(s)
			}

			// each job runs on its own so the queue can reject overflow
			go func(payload interface{}) {
				if _, err := d.HandlePrintRequest(ctx, source, payload); err != nil {
					d.logger.Debug("Print event failed", zap.Error(err))
				}
			}(ev.Data["payload"])
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, source model.JobSource, payload interface{}, forced model.TransportType) (*model.PrintResult, error) {
	job := model.NewPrintJob(source)
	jobLogger := utils.NewJobLogger(d.logger.Logger, string(source), job.ID.String())
	if err := d.jobs.Create(ctx, job); err != nil {
		d.logger.Warn("Failed to journal print job", zap.Error(err))
	}

	select {
	case d.slots <- struct{}{}:
		defer func() { <-d.slots }()
	default:
		d.finish(ctx, job, model.JobStatusRejected, model.ErrPrinterBusy)
		jobLogger.Error(model.ErrPrinterBusy)
		d.notifier.Notify(ctx, TitlePrinterBusy, "Another receipt is already waiting, try again shortly")
		return nil, model.ErrPrinterBusy
	}

	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}

	jobLogger.Start(zap.String("transport", string(forced)))

	text, err := payloadText(payload)
	if err == nil {
		var data []byte
		data, err = d.builder.Build(ctx, text)
		if err == nil {
			job.Bytes = len(data)
			jobLogger.Progress("built", zap.Int("bytes", len(data)))
			d.printMu.Lock()
			job.Transport, job.Reconnected, err = d.send(ctx, data, forced)
			d.printMu.Unlock()
		}
	}

	if err != nil {
		d.finish(ctx, job, model.JobStatusFailed, err)
		jobLogger.Error(err, zap.String("transport", string(job.Transport)))
		if model.IsNotConnected(err) && job.Transport == model.TransportNone {
			d.notifier.Notify(ctx, TitleNotConnected, "Connect a Bluetooth or network printer first")
		} else {
			d.notifier.Notify(ctx, TitlePrintError, err.Error())
		}
		return nil, err
	}

	d.finish(ctx, job, model.JobStatusPrinted, nil)
	jobLogger.Success(
		zap.String("transport", string(job.Transport)),
		zap.Bool("reconnected", job.Reconnected),
	)

	result := &model.PrintResult{
		JobID:       job.ID,
		Transport:   job.Transport,
		Bytes:       job.Bytes,
		Reconnected: job.Reconnected,
		Message:     fmt.Sprintf("Sent %d bytes via %s", job.Bytes, job.Transport),
	}
	d.notifier.Notify(ctx, TitlePrinted, result.Message)
	return result, nil
}

// send picks the transport and writes. Caller holds printMu.
func (d *Dispatcher) send(ctx context.Context, data []byte, forced model.TransportType) (model.TransportType, bool, error) {
	networkUp := d.net != nil && d.net.IsConnected()
	bluetoothUp := d.bt != nil && d.bt.IsConnected()

	switch {
	case forced == model.TransportNetwork:
		if !networkUp {
			return model.TransportNetwork, false, model.ErrNotConnected
		}
		return model.TransportNetwork, false, d.printNetwork(ctx, data)
	case forced == model.TransportBluetooth:
		if !bluetoothUp {
			return model.TransportBluetooth, false, model.ErrNotConnected
		}
		reconnected, err := d.printBluetooth(ctx, data)
		return model.TransportBluetooth, reconnected, err
	case networkUp:
		return model.TransportNetwork, false, d.printNetwork(ctx, data)
	case bluetoothUp:
		reconnected, err := d.printBluetooth(ctx, data)
		return model.TransportBluetooth, reconnected, err
	default:
		return model.TransportNone, false, model.ErrNotConnected
	}
}

func (d *Dispatcher) printNetwork(ctx context.Context, data []byte) error {
	if err := d.net.Write(ctx, escpos.Reset()); err != nil {
		d.logger.Debug("Printer reset failed", zap.Error(err))
	}
	if err := utils.Sleep(ctx, d.opts.NetworkSettle); err != nil {
		return err
	}
	return d.net.Write(ctx, data)
}

func (d *Dispatcher) printBluetooth(ctx context.Context, data []byte) (bool, error) {
	if err := d.bt.CancelDiscovery(ctx); err != nil {
		d.logger.Debug("Cancel discovery failed", zap.Error(err))
	}
	if err := utils.Sleep(ctx, d.opts.DiscoverySettle); err != nil {
		return false, err
	}
	if err := d.bt.Write(ctx, escpos.Reset()); err != nil {
		d.logger.Debug("Printer reset failed", zap.Error(err))
	}
	if err := utils.Sleep(ctx, d.opts.ResetSettle); err != nil {
		return false, err
	}

	err := d.bt.Write(ctx, data)
	if err == nil || !model.IsNotConnected(err) {
		return false, err
	}

	d.logger.Info("Bluetooth link lost, reconnecting once", zap.Error(err))
	if !d.bt.Reconnect(ctx, d.bt.ActiveAddress()) {
		return false, err
	}
	return true, d.bt.Write(ctx, data)
}

func (d *Dispatcher) finish(ctx context.Context, job *model.PrintJob, status model.JobStatus, err error) {
	job.Complete(status, err)
	if updateErr := d.jobs.Update(context.WithoutCancel(ctx), job); updateErr != nil {
		d.logger.Warn("Failed to journal print outcome", zap.Error(updateErr))
	}

	data := map[string]interface{}{
		"job_id":      job.ID.String(),
		"status":      string(job.Status),
		"transport":   string(job.Transport),
		"bytes":       job.Bytes,
		"reconnected": job.Reconnected,
	}
	if job.ErrorMessage != nil {
		data["error"] = *job.ErrorMessage
	}
	if d.bus != nil {
		d.bus.Publish(event.NewEvent(event.TypePrintResult, "dispatcher", data))
	}
}

// payloadText normalizes a print payload to JSON text
func payloadText(payload interface{}) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", &model.ParseError{Err: errors.New("empty print payload")}
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	case json.RawMessage:
		return string(p), nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return "", &model.ParseError{Err: err}
		}
		return string(raw), nil
	}
}
