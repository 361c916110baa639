// Package bluetooth defines the BluetoothService capability the
// Companion Proxy Shard uses to acquire and release its RFCOMM-style
// socket to the paired phone. It replaces the reflection-based
// private-API access the original platform used to reach its hidden
// Bluetooth stack: every capability the shard needs is an explicit
// method on an interface, backed here by a real adapter connection
// over tinygo.org/x/bluetooth, with GATT characteristic read/write
// standing in for the RFCOMM socket's byte stream.
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// ErrNotConnected is returned by Send/Receive when no socket is held.
var ErrNotConnected = errors.New("bluetooth: socket not connected")

// Socket is the narrow capability the proxy shard needs once a
// connection to the companion has been established: a duplex byte
// stream plus a way to tear it down.
type Socket interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Service is the capability surface the proxy shard depends on. It
// deliberately exposes nothing beyond adapter power control and
// socket acquisition: no scanning, pairing, or bond management, which
// remain the responsibility of pkg/companion and the platform's own
// pairing UI.
type Service interface {
	// Enable powers the adapter on, returning an error if unavailable.
	Enable(ctx context.Context) error
	// Disable powers the adapter off.
	Disable(ctx context.Context) error
	// Enabled reports the last known adapter power state.
	Enabled() bool
	// ConnectSocket opens a socket to the companion at address,
	// discovering the configured service/characteristic pair.
	ConnectSocket(ctx context.Context, address string) (Socket, error)
}

// Config names the GATT service/characteristic pair that stands in
// for the platform's proprietary RFCOMM service.
type Config struct {
	AdapterID          string
	ServiceUUID        string
	CharacteristicUUID string
}

// AdapterService is the real Service implementation.
type AdapterService struct {
	mu      sync.RWMutex
	config  Config
	adapter *bluetooth.Adapter
	enabled bool
}

// NewAdapterService creates a Service bound to the default adapter.
func NewAdapterService(config Config) *AdapterService {
	return &AdapterService{
		config:  config,
		adapter: bluetooth.DefaultAdapter,
	}
}

// Enable implements Service.
func (s *AdapterService) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	s.enabled = true
	return nil
}

// Disable implements Service. tinygo's adapter has no symmetric
// Disable call; the enabled flag is tracked here for mediator state
// reporting purposes.
func (s *AdapterService) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return nil
}

// Enabled implements Service.
func (s *AdapterService) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// ConnectSocket implements Service: it connects to address, discovers
// the configured service and characteristic, and returns a Socket
// backed by characteristic write (send) and notification (receive).
func (s *AdapterService) ConnectSocket(ctx context.Context, address string) (Socket, error) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return nil, errors.New("bluetooth: adapter not enabled")
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("parse companion address: %w", err)
	}

	device, err := s.adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect to companion: %w", err)
	}

	srvUUID, err := bluetooth.ParseUUID(s.config.ServiceUUID)
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{srvUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("discover companion service: %w", err)
	}

	charUUID, err := bluetooth.ParseUUID(s.config.CharacteristicUUID)
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("discover companion characteristic: %w", err)
	}

	sock := &gattSocket{
		device:         device,
		characteristic: chars[0],
		inbox:          make(chan []byte, 32),
		closed:         make(chan struct{}),
	}

	if err := chars[0].EnableNotifications(sock.onNotify); err != nil {
		// Some companion implementations are write-only from the
		// shard's perspective; proceed without inbound notifications.
		_ = err
	}

	return sock, nil
}

type gattSocket struct {
	mu             sync.Mutex
	device         bluetooth.Device
	characteristic bluetooth.DeviceCharacteristic
	inbox          chan []byte
	closed         chan struct{}
	closeOnce      sync.Once
}

func (g *gattSocket) onNotify(buf []byte) {
	data := make([]byte, len(buf))
	copy(data, buf)
	select {
	case g.inbox <- data:
	default:
	}
}

func (g *gattSocket) Send(ctx context.Context, data []byte) error {
	select {
	case <-g.closed:
		return ErrNotConnected
	default:
	}
	_, err := g.characteristic.WriteWithoutResponse(data)
	return err
}

func (g *gattSocket) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-g.inbox:
		return data, nil
	case <-g.closed:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gattSocket) Close() error {
	g.closeOnce.Do(func() {
		close(g.closed)
		g.device.Disconnect()
	})
	return nil
}

// StaticService is a fixed-behavior Service for tests and
// environments without a real adapter: Enable/Disable toggle a flag,
// and ConnectSocket returns sockets backed by in-memory channels.
type StaticService struct {
	mu      sync.Mutex
	enabled bool
}

// NewStaticService creates a disabled StaticService.
func NewStaticService() *StaticService { return &StaticService{} }

func (s *StaticService) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return nil
}

func (s *StaticService) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return nil
}

func (s *StaticService) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *StaticService) ConnectSocket(ctx context.Context, address string) (Socket, error) {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled {
		return nil, errors.New("bluetooth: adapter not enabled")
	}
	return &loopbackSocket{inbox: make(chan []byte, 32), closed: make(chan struct{})}, nil
}

type loopbackSocket struct {
	mu        sync.Mutex
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (l *loopbackSocket) Send(ctx context.Context, data []byte) error {
	select {
	case <-l.closed:
		return ErrNotConnected
	case l.inbox <- data:
		return nil
	case <-time.After(time.Second):
		return errors.New("bluetooth: loopback send timed out")
	}
}

func (l *loopbackSocket) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-l.inbox:
		return data, nil
	case <-l.closed:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *loopbackSocket) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}
