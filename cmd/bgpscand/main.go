// Command bgpscand runs the BGP nexthop reachability and IGP-import
// oracle as a standalone daemon: it wires the core packages to a zebra
// socket, a prometheus metrics listener, and the "bgp scan-time"/
// "show ip bgp scan" CLI surface described in spec.md §6.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextwire/bgpscand/internal/cli"
	"github.com/nextwire/bgpscand/internal/config"
	"github.com/nextwire/bgpscand/internal/conntable"
	"github.com/nextwire/bgpscand/internal/importer"
	"github.com/nextwire/bgpscand/internal/metrics"
	"github.com/nextwire/bgpscand/internal/nhcache"
	"github.com/nextwire/bgpscand/internal/ribview"
	"github.com/nextwire/bgpscand/internal/scanner"
	"github.com/nextwire/bgpscand/internal/sched"
	"github.com/nextwire/bgpscand/internal/zlookup"
)

var (
	zebraSock      = flag.String("zebra-sock", "/var/run/zserv.api", "path to the routing daemon's unix socket")
	scanTime       = flag.Int("scan-time", int(config.ScanIntervalDefault/time.Second), "initial BGP nexthop scan interval in seconds (5-60)")
	importTime     = flag.Duration("import-time", config.ImportIntervalDefault, "static route import interval")
	reconnectEvery = flag.Duration("reconnect-interval", 5*time.Second, "routing daemon reconnect attempt interval")
	verbose        = flag.Bool("v", false, "enable verbose (debug) logging and the colorized dev log handler")
	metricsEnable  = flag.Bool("metrics-enable", false, "enable the prometheus metrics listener")
	metricsAddr    = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")
	seedNetlink    = flag.Bool("seed-netlink", false, "seed connected-prefix tables from the host's interface addresses at startup (linux only)")
	vtySock        = flag.String("vty-sock", "/var/run/bgpscand.vty", "path to the vty control socket for bgp scan-time/show ip bgp scan")
)

func main() {
	flag.Parse()
	log := newLogger(*verbose)
	slog.SetDefault(log)

	scanCfg := config.NewScan()
	if _, err := scanCfg.Set(time.Duration(*scanTime) * time.Second); err != nil {
		log.Error("invalid -scan-time", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	m := metrics.New(reg)

	if *metricsEnable {
		go serveMetrics(log, reg, *metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connv4 := conntable.New()
	connv6 := conntable.New()
	if *seedNetlink {
		if err := seedConnectedFromNetlink(connv4, connv6); err != nil {
			log.Warn("failed to seed connected-prefix tables from netlink", "error", err)
		}
	}

	bnctV4 := nhcache.New()
	bnctV6 := nhcache.New()

	zc := zlookup.NewClient(unixDialer(*zebraSock), log)
	if err := zc.Connect(ctx); err != nil {
		log.Warn("initial routing daemon connect failed, will retry", "error", err)
	}

	rib := ribview.NewMemRIB()

	scanV4 := &scanner.Scanner{
		AFI: ribview.AFIIPv4, BNCT: bnctV4, Conn: connv4,
		Resolver: zc, RIB: rib, Log: log, Metrics: m,
	}
	scanV6 := &scanner.Scanner{
		AFI: ribview.AFIIPv6, BNCT: bnctV6, Conn: connv6,
		Resolver: zc, RIB: rib, Log: log, Metrics: m,
	}
	imp := &importer.Importer{RIB: rib, ZLookup: zc, Log: log, Metrics: m}

	timers := sched.New(sched.Config{
		Clock:              clockwork.NewRealClock(),
		ScanInterval:       scanCfg.Interval(),
		ImportInterval:     *importTime,
		ReconnectInterval:  *reconnectEvery,
		Log:                log,
		RunScan: func(ctx context.Context) {
			scanV4.RunOnce(ctx)
			scanV6.RunOnce(ctx)
		},
		RunImport: func(ctx context.Context) {
			imp.RunOnce()
		},
		TryReconnect: func(ctx context.Context) error {
			if zc.Connected() {
				m.SetSocketUp(true)
				return nil
			}
			err := zc.Connect(ctx)
			m.SetSocketUp(err == nil)
			return err
		},
	})

	root := &cli.Root{
		Scan: scanCfg, Timers: timers,
		BNCTv4: bnctV4, BNCTv6: bnctV6,
		Connv4: connv4, Connv6: connv6,
		ScanRunning: true,
	}
	go func() {
		if err := cli.Serve(ctx, root, *vtySock, log); err != nil {
			log.Error("cli: vty socket stopped", "error", err)
		}
	}()

	log.Info("bgpscand started", "zebra-sock", *zebraSock, "scan-time", scanCfg.Interval())
	timers.Run(ctx)

	zc.Close()
	bnctV4.Finish()
	bnctV6.Finish()
	log.Info("bgpscand stopped")
}

func unixDialer(path string) zlookup.Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if verbose {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func serveMetrics(log *slog.Logger, reg *prometheus.Registry, addr string) {
	buildInfo := promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "bgpscand_build_info",
		Help: "Always 1; present so scrape targets can be identified.",
	})
	buildInfo.Set(1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("failed to start prometheus metrics listener", "error", err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info("prometheus metrics server started", "address", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		log.Error("prometheus metrics server stopped", "error", err)
	}
}
