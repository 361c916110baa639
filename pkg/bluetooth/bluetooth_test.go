package bluetooth

import (
	"context"
	"testing"
	"time"
)

func TestStaticServiceRefusesSocketWhileDisabled(t *testing.T) {
	svc := NewStaticService()
	if _, err := svc.ConnectSocket(context.Background(), "AA:BB:CC:DD:EE:FF"); err == nil {
		t.Fatal("ConnectSocket should fail while the adapter is disabled")
	}
}

func TestStaticServiceLoopbackSocket(t *testing.T) {
	svc := NewStaticService()
	if err := svc.Enable(context.Background()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !svc.Enabled() {
		t.Fatal("Enabled() should be true after Enable")
	}

	sock, err := svc.ConnectSocket(context.Background(), "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("ConnectSocket: %v", err)
	}
	defer sock.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := sock.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := sock.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Receive() = %q, want %q", got, "hello")
	}
}

func TestLoopbackSocketClosedRejectsSend(t *testing.T) {
	svc := NewStaticService()
	svc.Enable(context.Background())
	sock, _ := svc.ConnectSocket(context.Background(), "AA:BB:CC:DD:EE:FF")
	sock.Close()

	if err := sock.Send(context.Background(), []byte("x")); err != ErrNotConnected {
		t.Fatalf("Send after Close = %v, want ErrNotConnected", err)
	}
	if _, err := sock.Receive(context.Background()); err != ErrNotConnected {
		t.Fatalf("Receive after Close = %v, want ErrNotConnected", err)
	}
}
