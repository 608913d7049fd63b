package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"

    "github.com/benbjohnson/clock"
    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
    "github.com/GBCLStudio/LinkNebula/pkg/observability"
    "github.com/GBCLStudio/LinkNebula/pkg/radio"
    "github.com/GBCLStudio/LinkNebula/pkg/radio/sim"
    "github.com/GBCLStudio/LinkNebula/pkg/radio/udp"
    "github.com/GBCLStudio/LinkNebula/pkg/server"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("aether-server started", zap.String("app", cfg.AppName))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    hw, err := buildHardware(cfg)
    if err != nil {
        zap.L().Error("failed to build radio bearer", zap.Error(err))
        return 1
    }
    if err := hw.Radio().Configure(cfg.Radio.Channel, cfg.Radio.TxPower); err != nil {
        zap.L().Error("radio configure failed", zap.Error(err))
        return 1
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    node := server.NewNode(hw, cfg.Server)
    if err := node.Run(ctx); err != nil && err != context.Canceled {
        zap.L().Error("server node stopped", zap.Error(err))
        return 1
    }
    zap.L().Info("server node shut down")
    return 0
}

func buildHardware(cfg *config.Config) (radio.Hardware, error) {
    nodeID, err := cfg.LocalNodeID()
    if err != nil {
        return nil, err
    }
    if strings.ToLower(cfg.Radio.Bearer) == "sim" {
        zap.L().Warn("sim bearer is single-process; peers on other hosts are unreachable")
        return sim.NewHardware(nodeID, sim.NewChannel(), clock.New()), nil
    }
    hw, err := udp.New(nodeID, cfg.Radio.Listen, cfg.Radio.Peer)
    if err != nil {
        return nil, err
    }
    return hw, nil
}
