package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wearos/connsupervisor/pkg/bluetooth"
	"github.com/wearos/connsupervisor/pkg/companion"
	"github.com/wearos/connsupervisor/pkg/config"
	"github.com/wearos/connsupervisor/pkg/controller"
	"github.com/wearos/connsupervisor/pkg/diag"
	"github.com/wearos/connsupervisor/pkg/diag/grpchealth"
	"github.com/wearos/connsupervisor/pkg/eventbus"
	"github.com/wearos/connsupervisor/pkg/logger"
	"github.com/wearos/connsupervisor/pkg/mediator"
	"github.com/wearos/connsupervisor/pkg/netagent"
	"github.com/wearos/connsupervisor/pkg/offbody"
	"github.com/wearos/connsupervisor/pkg/policy"
	"github.com/wearos/connsupervisor/pkg/power"
	"github.com/wearos/connsupervisor/pkg/proxyshard"
	"github.com/wearos/connsupervisor/pkg/radio"
	"github.com/wearos/connsupervisor/pkg/telemetry"
)

var jsonOutput bool

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the connectivity supervisor",
		Long:  "Run the connectivity supervisor until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "log in JSON format")
	return cmd
}

func runSupervisor() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	logger.SetGlobal(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New(256, log)
	go bus.Run(ctx)

	// Device-state trackers. The sensor/OS feeds that would call their
	// setters (charger broadcast receiver, off-body proximity sensor,
	// screen state) live outside this module; they start at the
	// fresh-boot defaults the mediators expect.
	companionTracker := companion.NewTracker()
	if cfg.Bluetooth.CompanionAddress != "" {
		companionTracker.Pair(cfg.Bluetooth.CompanionAddress, cfg.Bluetooth.CompanionName, companion.LinkClassic)
	}
	powerTracker := power.NewTracker()
	offBodyTracker := offbody.NewTracker(cfg.OffBodyRadiosOffEnabled)

	agents := netagent.NewRegistry()

	bt := bluetooth.NewAdapterService(bluetooth.Config{
		AdapterID:          cfg.Bluetooth.AdapterID,
		ServiceUUID:        cfg.Bluetooth.ServiceUUID,
		CharacteristicUUID: cfg.Bluetooth.CharacteristicUUID,
	})

	proxyShard := proxyshard.New(cfg.Bluetooth.CompanionAddress, bt, companionTracker, newLoopbackBridge(log), agents, bus, log)
	hfcShard := proxyshard.New(cfg.Bluetooth.CompanionAddress, bt, companionTracker, newLoopbackBridge(log), agents, bus, log)
	go proxyShard.Run(ctx)
	go hfcShard.Run(ctx)

	btWorker := mediator.NewWorker(radio.BT, newLoopbackDriver(radio.BT, log), log)
	cellWorker := mediator.NewWorker(radio.CELL, newLoopbackDriver(radio.CELL, log), log)
	go btWorker.Run(ctx)
	go cellWorker.Run(ctx)

	btMediator := mediator.NewBTMediator(btWorker, proxyShard, hfcShard, cfg.ProxyScoreOnCharger, cfg.ProxyScoreClassic, cfg.CancelConnectOnBootDelay)
	cellMediator := mediator.NewCellularMediator(cellWorker)

	wifiMediator := mediator.NewWifiMediator(false, defaultInterfaceFactory, nil, nil)

	var policyEngine policy.Engine = policy.NewStaticEngine()
	if cfg.Policy.ScriptPath != "" {
		luaEngine, err := policy.NewLuaEngine(cfg.Policy.ScriptPath)
		if err != nil {
			log.Warn("failed to load policy script, falling back to static policy", "path", cfg.Policy.ScriptPath, "error", err)
		} else {
			policyEngine = luaEngine
		}
	}

	ctrl := controller.New(controller.Config{
		BTStateChangeDelay:    time.Duration(cfg.BTStateChangeDelayMs) * time.Millisecond,
		OffBodyRadiosOffDelay: time.Duration(cfg.OffBodyDelayMs) * time.Millisecond,
	}, policyEngine, btMediator, cellMediator, wifiMediator, log)
	go ctrl.Run(ctx)

	// Boot sequence: seed the cellular mediator from config and bring
	// its latch down, seed the BT mediator from the trackers' fresh-boot
	// state, then bring the adapter up as if a platform ON broadcast had
	// just arrived.
	cellMediator.Update(func(in *mediator.CellInputs) {
		in.CellAuto = cfg.CellAuto
		in.CellUserSettingOff = !cfg.CellOn
		in.SignalDetectorActive = cfg.SignalDetectorEnabled
	})
	cellMediator.OnBootCompleted()
	if err := bt.Enable(ctx); err != nil {
		log.Warn("failed to enable bluetooth adapter", "error", err)
	}
	snap := powerTracker.Snapshot()
	btMediator.SetCharging(snap.Charging, func(score int) { proxyShard.SetScore(score) })
	btMediator.SetTimeOnlyMode(cfg.TimeOnlyMode.Enabled)
	btMediator.SetOffBody(offBodyTracker.Effective())
	btMediator.SetAdapterOn(true, companionTracker.Paired())

	var hub *diag.Hub
	var diagServer *diag.Server
	if cfg.Diagnostics.Enabled {
		hub = diag.NewHub(log)
		bus.Subscribe(hub)

		provider := diag.ProviderFunc(func() diag.Dump {
			return buildDump(btWorker, cellWorker, wifiMediator, proxyShard, agents)
		})

		var apiKeys []string
		var jwtSecret string
		if cfg.Diagnostics.Auth.Enabled {
			apiKeys = cfg.Diagnostics.Auth.APIKeys
			jwtSecret = cfg.Diagnostics.Auth.JWTSecret
		}

		diagServer = diag.NewServer(provider, hub, diag.ServerConfig{
			Port:      portFromAddr(cfg.Diagnostics.Addr, 9401),
			APIKeys:   apiKeys,
			JWTSecret: jwtSecret,
		}, log)
		if err := diagServer.Start(); err != nil {
			return fmt.Errorf("failed to start diagnostics server: %w", err)
		}
	}

	var grpcHealthServer *grpchealth.Server
	if cfg.GRPCHealth.Enabled {
		grpcHealthServer = grpchealth.NewServer(log,
			grpchealth.ComponentController,
			grpchealth.ComponentBT,
			grpchealth.ComponentWifi,
			grpchealth.ComponentCellular,
			grpchealth.ComponentProxyShard,
		)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.GRPCHealth.Port)
			if err := grpcHealthServer.Serve(addr); err != nil {
				log.Error("grpc health server stopped", "error", err)
			}
		}()
		grpcHealthServer.SetServing(grpchealth.ComponentController, true)
	}

	var telemetrySink *telemetry.Sink
	if cfg.Telemetry.Enabled {
		tcfg := telemetry.DefaultConfig()
		tcfg.Broker = cfg.Telemetry.Broker
		if cfg.Telemetry.ClientID != "" {
			tcfg.ClientID = cfg.Telemetry.ClientID
		}
		tcfg.TopicPrefix = cfg.Telemetry.TopicRoot
		telemetrySink = telemetry.NewSink(tcfg, log)
		bus.Subscribe(telemetrySink)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("connsupervisord running")
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if diagServer != nil {
		if err := diagServer.Stop(shutdownCtx); err != nil {
			log.Warn("error stopping diagnostics server", "error", err)
		}
	}
	if grpcHealthServer != nil {
		grpcHealthServer.Stop(shutdownCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("error stopping metrics server", "error", err)
		}
	}
	if telemetrySink != nil {
		telemetrySink.Close()
	}
	bus.Close()

	cancel()
	log.Info("connsupervisord stopped")
	return nil
}

// defaultInterfaceFactory stands in for the platform's Wi-Fi
// interface-creation API, out of scope for this module.
func defaultInterfaceFactory() (string, error) {
	return "wlan0", nil
}

func portFromAddr(addr string, fallback int) int {
	var port int
	if _, err := fmt.Sscanf(addr, ":%d", &port); err != nil || port == 0 {
		return fallback
	}
	return port
}

func buildDump(btWorker, cellWorker *mediator.Worker, wifiMediator *mediator.WifiMediator, shard *proxyshard.Shard, agents *netagent.Registry) diag.Dump {
	radios := []diag.RadioDump{
		radioDump("BT", btWorker),
		radioDump("CELL", cellWorker),
		wifiDump(wifiMediator),
	}

	records := agents.List()
	agentDumps := make([]diag.AgentDump, 0, len(records))
	for _, rec := range records {
		agentDumps = append(agentDumps, diag.AgentDump{
			ID:      rec.ID,
			Radio:   rec.Info.Radio,
			Metered: rec.Info.Metered,
			Score:   rec.Score,
			State:   string(rec.Info.State),
			Reason:  rec.Reason,
			Pending: agents.IsPendingTeardown(rec.ID),
		})
	}

	return diag.Dump{
		Radios: radios,
		Proxy: diag.ProxyDump{
			State:          shard.State().String(),
			ShardInstances: 1,
		},
		Agents: agentDumps,
	}
}

func radioDump(name string, w *mediator.Worker) diag.RadioDump {
	d, ok := w.Current()
	history := w.History().Snapshot()
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("%s: enable=%v reason=%s count=%d at=%d", h.Radio, h.Enable, h.Reason, h.Count, h.TimestampMs))
	}
	if !ok {
		return diag.RadioDump{Radio: name, Enabled: false, Reason: "unknown", History: lines}
	}
	return diag.RadioDump{Radio: name, Enabled: d.Enable, Reason: string(d.Reason), History: lines}
}

func wifiDump(m *mediator.WifiMediator) diag.RadioDump {
	return diag.RadioDump{Radio: "WIFI", Enabled: m.State() != mediator.WifiIdle, Reason: m.State().String()}
}
