package main

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/cors"
	"mercator-hq/ingress/pkg/proxy"
	"mercator-hq/ingress/pkg/rewrite"
	"mercator-hq/ingress/pkg/routing"
	"mercator-hq/ingress/pkg/security/secrets"
	gwtls "mercator-hq/ingress/pkg/security/tls"
	"mercator-hq/ingress/pkg/server"
	"mercator-hq/ingress/pkg/telemetry/health"
	"mercator-hq/ingress/pkg/telemetry/logging"
	"mercator-hq/ingress/pkg/telemetry/metrics"
)

// gateway holds the assembled components of one process.
type gateway struct {
	cfg      *config.Config
	logger   *logging.Logger
	server   *server.Server
	prober   *health.UpstreamProber
	reloader *gwtls.CertificateReloader
}

// resolveCredentials expands ${secret:name} references in the configured
// credentials and builds the credential set.
func resolveCredentials(ctx context.Context, cfg *config.Config) (rewrite.Credentials, error) {
	var providers []secrets.Provider
	if dir := cfg.Security.Secrets.Dir; dir != "" {
		files, err := secrets.NewFileProvider(dir)
		if err != nil {
			return rewrite.Credentials{}, err
		}
		providers = append(providers, files)
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.Security.Secrets.EnvPrefix))
	resolver := secrets.NewResolver(providers...)

	apiKey, err := resolver.Resolve(ctx, cfg.Credentials.APIKey)
	if err != nil {
		return rewrite.Credentials{}, fmt.Errorf("credentials.api_key: %w", err)
	}
	bearer, err := resolver.Resolve(ctx, cfg.Credentials.BearerToken)
	if err != nil {
		return rewrite.Credentials{}, fmt.Errorf("credentials.bearer_token: %w", err)
	}
	return rewrite.NewCredentials(apiKey, bearer)
}

// newGateway builds every component from an immutable configuration value.
// Nothing is bound or started.
func newGateway(cfg *config.Config, creds rewrite.Credentials, logger *logging.Logger) (*gateway, error) {
	upstream, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("upstream url: %w", err)
	}

	table, err := routing.NewTable(config.RouteEntries(cfg.Routes))
	if err != nil {
		return nil, err
	}

	policy, err := cors.NewPolicy(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	opts := proxy.TransportOptionsFromConfig(cfg.Upstream, cfg.Realtime)
	dispatcher, err := proxy.NewDispatcher(proxy.Config{
		Upstream:        upstream,
		Routes:          table,
		Credentials:     creds,
		CORS:            policy,
		Transport:       proxy.NewTransport(opts),
		TunnelClient:    proxy.NewTunnelClient(opts),
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		Logger:          logger,
		Metrics:         collector,
	})
	if err != nil {
		return nil, err
	}

	hc := cfg.Telemetry.Health
	prober, err := health.NewUpstreamProber(health.ProberConfig{
		UpstreamURL: upstream,
		Path:        hc.ProbePath,
		Schedule:    hc.ProbeSchedule,
		Timeout:     hc.CheckTimeout,
		Credentials: creds,
		Logger:      logger,
		Metrics:     collector,
	})
	if err != nil {
		return nil, err
	}
	checker := health.New(hc.CheckTimeout)
	checker.RegisterCheck("upstream", prober.Check)

	g := &gateway{cfg: cfg, logger: logger, prober: prober}

	tlsCfg := cfg.Security.TLS
	if tlsCfg.Enabled {
		g.reloader, err = gwtls.NewCertificateReloader(tlsCfg.CertFile, tlsCfg.KeyFile, logger)
		if err != nil {
			return nil, err
		}
		checker.RegisterCheck("certificate", g.reloader.Check)
	}
	serverTLS, err := gwtls.ServerConfig(tlsCfg, g.reloader)
	if err != nil {
		return nil, err
	}

	g.server, err = server.New(server.Options{
		Server:     cfg.Server,
		Telemetry:  cfg.Telemetry,
		Dispatcher: dispatcher,
		CORS:       policy,
		Health:     checker,
		Metrics:    collector,
		Version:    health.VersionHandler(Version, GitCommit, BuildDate),
		TLS:        serverTLS,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return g, nil
}

// run binds the listener and serves until ctx is canceled. A bind failure
// is returned before anything else starts.
func (g *gateway) run(ctx context.Context) error {
	if err := g.server.Listen(); err != nil {
		return err
	}

	if err := g.prober.Start(ctx); err != nil {
		_ = g.server.Shutdown(context.Background())
		return err
	}
	defer g.prober.Stop()

	if g.reloader != nil && g.cfg.Security.TLS.Watch {
		if err := g.reloader.Watch(ctx); err != nil {
			g.logger.Warn("certificate watch disabled", "error", err)
		}
		defer g.reloader.Close()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return g.server.Start(gctx)
	})

	g.logger.Info("gateway started",
		"address", g.server.Addr().String(),
		"upstream", g.cfg.Upstream.URL,
		"routes", len(g.cfg.Routes),
		"tls_enabled", g.reloader != nil,
	)

	err := group.Wait()
	g.logger.Info("gateway stopped")
	return err
}
