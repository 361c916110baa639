package main

// Radio driver and native-proxy-bridge access is out of scope: the
// platform's BT/Wi-Fi/Cellular driver APIs and the native sysproxy
// tunnel itself live outside this module. loopbackDriver and
// loopbackBridge are the stand-ins that let the supervisor's decision
// logic run end to end without them, reporting every power change and
// socket handoff as immediately successful.

import (
	"context"
	"time"

	"github.com/wearos/connsupervisor/pkg/bluetooth"
	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/proxyshard"
	"github.com/wearos/connsupervisor/pkg/radio"
)

// loopbackDriver implements mediator.Driver by logging the requested
// power state and reporting it settled immediately.
type loopbackDriver struct {
	kind radio.Kind
	log  *logger.Logger
}

func newLoopbackDriver(kind radio.Kind, log *logger.Logger) *loopbackDriver {
	return &loopbackDriver{kind: kind, log: log}
}

func (d *loopbackDriver) SetEnabled(ctx context.Context, enable bool) error {
	d.log.Info("radio power change", "radio", d.kind, "enable", enable)
	return nil
}

func (d *loopbackDriver) AwaitSettled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(10 * time.Millisecond):
		return true
	}
}

// loopbackBridge implements proxyshard.NativeBridge by reporting every
// socket handoff as an immediate, unmetered cellular-class connect.
type loopbackBridge struct {
	log *logger.Logger
}

func newLoopbackBridge(log *logger.Logger) *loopbackBridge {
	return &loopbackBridge{log: log}
}

func (b *loopbackBridge) Deliver(ctx context.Context, sock bluetooth.Socket, events chan<- proxyshard.NativeEvent) bool {
	go func() {
		events <- proxyshard.NativeEvent{Connected: true, NetworkType: 0, Metered: false}
	}()
	return true
}

func (b *loopbackBridge) Disconnect(ctx context.Context) {
	b.log.Info("native bridge disconnect requested")
}
