// Command syncd is the per-host DNS-sync sidecar: it watches the local
// Docker daemon's container lifecycle, derives DNS record intents, and
// reconciles them into a shared etcd registry under distributed locking.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/localdns/syncd/internal/audit"
	"github.com/localdns/syncd/internal/clock"
	"github.com/localdns/syncd/internal/config"
	"github.com/localdns/syncd/internal/containersource"
	"github.com/localdns/syncd/internal/docker"
	"github.com/localdns/syncd/internal/logging"
	"github.com/localdns/syncd/internal/metrics"
	"github.com/localdns/syncd/internal/registry"
	"github.com/localdns/syncd/internal/state"
	"github.com/localdns/syncd/internal/syncengine"
	"github.com/localdns/syncd/internal/tlsutil"
)

// version and commit are set at build time via ldflags:
//
//	-X main.version=$(VERSION) -X main.commit=$(COMMIT)
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	log.Info("dnssync starting", "version", versionString())
	for k, v := range cfg.Values() {
		log.Debug("config", "key", k, "value", v)
	}

	dockerTLS := tlsutil.Config{
		CACert:     os.Getenv("DNSSYNC_DOCKER_TLS_CA"),
		ClientCert: os.Getenv("DNSSYNC_DOCKER_TLS_CERT"),
		ClientKey:  os.Getenv("DNSSYNC_DOCKER_TLS_KEY"),
	}
	dockerClient, err := docker.NewClient(cfg.DockerSock, &dockerTLS)
	if err != nil {
		log.Error("failed to create Docker client", "error", err)
		os.Exit(1)
	}
	defer dockerClient.Close()

	if err := dockerClient.Ping(ctx); err != nil {
		log.Error("failed to reach Docker daemon", "error", err)
		os.Exit(1)
	}

	etcdEndpoint := fmt.Sprintf("%s:%d", cfg.EtcdHost, cfg.EtcdPort)
	etcdTLS := tlsutil.Config{
		CACert:     os.Getenv("DNSSYNC_ETCD_TLS_CA"),
		ClientCert: os.Getenv("DNSSYNC_ETCD_TLS_CERT"),
		ClientKey:  os.Getenv("DNSSYNC_ETCD_TLS_KEY"),
	}
	etcdConfig := clientv3.Config{
		Endpoints:   []string{etcdEndpoint},
		DialTimeout: 5 * time.Second,
	}
	if etcdTLS.Enabled() {
		tlsConf, err := etcdTLS.Load()
		if err != nil {
			log.Error("failed to configure etcd TLS", "error", err)
			os.Exit(1)
		}
		etcdConfig.TLS = tlsConf
	}
	etcdCli, err := clientv3.New(etcdConfig)
	if err != nil {
		log.Error("failed to connect to etcd", "error", err)
		os.Exit(1)
	}
	defer etcdCli.Close()

	reg := registry.NewEtcdRegistryWithClient(etcdCli, registry.EtcdOptions{
		Prefix:        cfg.EtcdPathPrefix,
		LockTTL:       cfg.EtcdLockTTL,
		LockTimeout:   cfg.EtcdLockTimeout,
		RetryInterval: cfg.EtcdLockRetryInterval,
	})
	defer reg.Close()

	var trail *audit.Trail
	if cfg.AuditDBPath != "" {
		trail, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			log.Warn("failed to open audit trail, continuing without it", "error", err)
		} else {
			defer trail.Close()
		}
	}

	clk := clock.Real{}
	tracker := state.New(clk)
	source := containersource.New(dockerClient, cfg.Hostname, tracker, clk, log)
	eng := syncengine.New(cfg, log, clk, source, tracker, reg, trail)

	if cfg.MetricsEnabled {
		go runMetricsWriter(ctx, log, cfg)
	}

	if err := eng.Run(ctx); err != nil {
		log.Error("sync engine stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("dnssync stopped")
}

// runMetricsWriter periodically writes the textfile-collector snapshot.
// There is no HTTP endpoint -- metrics leave the process only via this file.
func runMetricsWriter(ctx context.Context, log *logging.Logger, cfg *config.Config) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
				log.Warn("failed to write metrics textfile", "error", err)
			}
		}
	}
}
