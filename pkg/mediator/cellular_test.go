package mediator

import (
	"context"
	"testing"
	"time"

	"github.com/wearos/connsupervisor/pkg/radio"
)

func TestDecideCellularPriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		in   CellInputs
		want string
	}{
		{"phone call beats everything", CellInputs{InTelephonyCall: true, ActivityMode: true}, "ON_PHONE_CALL"},
		{"activity mode", CellInputs{ActivityMode: true}, "OFF_ACTIVITY_MODE"},
		{"off-body not charging", CellInputs{OffBody: true}, "OFF_OFF_BODY"},
		{"user setting off", CellInputs{CellUserSettingOff: true}, "OFF_CELL_USER_SETTING"},
		{"sim absent", CellInputs{SIMAbsent: true}, "OFF_SIM_ABSENT"},
		{"power save", CellInputs{ShouldOffInPowerSave: true, PowerSave: true}, "OFF_POWER_SAVE"},
		{"network request", CellInputs{HighBwReq: 1}, "ON_NETWORK_REQUEST"},
		{
			name: "proxy disconnected beats bad signal",
			in: CellInputs{
				ProxyConnected:       false,
				SignalDetectorActive: true,
				Signal:               SignalNoSignal,
			},
			want: "ON_PROXY_DISCONNECTED",
		},
		{
			name: "no signal when proxy connected",
			in: CellInputs{
				ProxyConnected:       true,
				SignalDetectorActive: true,
				Signal:               SignalNoSignal,
			},
			want: "OFF_NO_SIGNAL",
		},
		{
			name: "unstable signal when proxy connected",
			in: CellInputs{
				ProxyConnected:       true,
				SignalDetectorActive: true,
				Signal:               SignalUnstable,
			},
			want: "OFF_UNSTABLE_SIGNAL",
		},
		{"cell auto off when proxy connected and signal fine", CellInputs{ProxyConnected: true, CellAuto: true}, "OFF_PROXY_CONNECTED"},
		{"default on", CellInputs{ProxyConnected: true}, "ON_DEFAULT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecideCellular(tc.in)
			if string(got.Reason) != tc.want {
				t.Fatalf("DecideCellular(%+v) reason = %s, want %s", tc.in, got.Reason, tc.want)
			}
		})
	}
}

func TestCellularMediatorSuppressedBeforeBootCompleted(t *testing.T) {
	w := NewWorker(radio.CELL, StaticDriver{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	m := NewCellularMediator(w)

	m.Update(func(in *CellInputs) { in.ProxyConnected = true })
	time.Sleep(20 * time.Millisecond)

	if _, ok := w.Current(); ok {
		t.Fatal("no decision should be submitted before OnBootCompleted")
	}

	m.OnBootCompleted()

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := w.Current(); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("OnBootCompleted should trigger the worker to apply a decision")
		}
		time.Sleep(time.Millisecond)
	}
}
