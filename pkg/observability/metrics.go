package observability

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "github.com/GBCLStudio/LinkNebula/pkg/config"
)

// Metrics bundles the node-level Prometheus collectors. All three roles
// share the same set; counters a role never touches simply stay zero.
type Metrics struct {
    BeaconsSent     prometheus.Counter
    BeaconsReceived prometheus.Counter
    PacketsRelayed  prometheus.Counter
    PacketsDropped  prometheus.Counter
    ElectionsRun    prometheus.Counter
    DirectoryHits   prometheus.Counter
    DirectoryMisses prometheus.Counter
    RoutesActive    prometheus.Gauge
    ServicesActive  prometheus.Gauge
}

// NewMetrics registers the collectors on reg, or on the default
// registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
    if reg == nil {
        reg = prometheus.DefaultRegisterer
    }
    factory := promauto.With(reg)
    return &Metrics{
        BeaconsSent: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "beacons_sent_total",
            Help: "Beacons broadcast by this node.",
        }),
        BeaconsReceived: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "beacons_received_total",
            Help: "Valid beacons received from neighbors.",
        }),
        PacketsRelayed: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "packets_relayed_total",
            Help: "Data packets forwarded to a next hop.",
        }),
        PacketsDropped: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "packets_dropped_total",
            Help: "Packets dropped for no route, bad checksum or malformed payload.",
        }),
        ElectionsRun: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "elections_run_total",
            Help: "Master elections this node initiated.",
        }),
        DirectoryHits: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "directory_hits_total",
            Help: "Service requests matched to a provider.",
        }),
        DirectoryMisses: factory.NewCounter(prometheus.CounterOpts{
            Namespace: "aetherlink", Name: "directory_misses_total",
            Help: "Service requests with no qualifying provider.",
        }),
        RoutesActive: factory.NewGauge(prometheus.GaugeOpts{
            Namespace: "aetherlink", Name: "routes_active",
            Help: "Entries currently held in the routing table.",
        }),
        ServicesActive: factory.NewGauge(prometheus.GaugeOpts{
            Namespace: "aetherlink", Name: "services_active",
            Help: "Entries currently held in the service directory.",
        }),
    }
}

// ServeMetrics starts the promhttp listener when enabled. It returns
// immediately; serve errors are logged, not fatal.
func ServeMetrics(c config.MetricsConfig) {
    if !c.Enable {
        return
    }
    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.Handler())
    srv := &http.Server{
        Addr:              c.Listen,
        Handler:           mux,
        ReadHeaderTimeout: 5 * time.Second,
    }
    go func() {
        zap.L().Info("metrics listener started", zap.String("addr", c.Listen))
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            zap.L().Warn("metrics listener stopped", zap.Error(err))
        }
    }()
}
