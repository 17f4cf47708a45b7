package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lawconnect/lawconnect/internal/auth"
	"github.com/lawconnect/lawconnect/internal/config"
	"github.com/lawconnect/lawconnect/internal/dispatch"
	"github.com/lawconnect/lawconnect/internal/gmail"
	"github.com/lawconnect/lawconnect/internal/google"
	"github.com/lawconnect/lawconnect/internal/instrumentation"
	"github.com/lawconnect/lawconnect/internal/logging"
	"github.com/lawconnect/lawconnect/internal/server"
	"github.com/lawconnect/lawconnect/internal/tokens"
)

// serveOptions holds flag values for the serve command.
type serveOptions struct {
	httpAddr       string
	migrate        bool
	trustProxy     bool
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the LawConnect HTTP API:

  POST /oauth/exchange  store Google tokens for a lawyer
  POST /oauth/refresh   refresh a lawyer's access token
  POST /email/send      send or schedule a reminder to a cliente

Configuration is read from the environment and an optional .env file
(see ENV_FILE_PATH). Flags override the corresponding variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = opts.httpAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Telemetry.MetricsAddr = opts.metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP server address. Can also use HTTP_ADDR env var.")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "Apply database migrations before serving")
	cmd.Flags().BoolVar(&opts.trustProxy, "trust-proxy", false, "Use X-Forwarded-For / X-Real-IP for rate limiting. Only enable behind a trusted proxy.")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions, logger *slog.Logger) error {
	provider, err := instrumentation.NewProvider(ctx, instrumentationConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(cfg.Telemetry.MetricsAddr, provider, logger)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	st.SetLogger(logger.With("component", "store"))
	if opts.migrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	audit := provider.AuditLogger(logger)
	metrics := provider.Metrics()

	tokenService := tokens.New(tokens.Config{
		Store: st.Privileged(),
		Provider: google.NewClient(google.Config{
			ClientID:     cfg.ProviderClientID,
			ClientSecret: cfg.ProviderClientSecret,
			TokenURL:     cfg.TokenURL,
		}),
		Metrics: metrics,
		Audit:   audit,
		Logger:  logger,
	})

	var mailOpts []gmail.Option
	if cfg.MailEndpoint != "" {
		mailOpts = append(mailOpts, gmail.WithEndpoint(cfg.MailEndpoint))
	}
	dispatcher := dispatch.New(dispatch.Config{
		Store:   st,
		Tokens:  tokenService,
		Sender:  gmail.NewClient(mailOpts...),
		From:    cfg.MailFrom,
		Metrics: metrics,
		Audit:   audit,
		Logger:  logger,
	})

	authenticator, err := auth.New(auth.Options{
		JWTSecret:   cfg.AuthJWTSecret,
		UserInfoURL: cfg.AuthUserInfoURL,
		APIKey:      cfg.AuthAPIKey,
	})
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := server.NewLimiterFromConfig(cfg.RedisURL, cfg.RateLimit, cfg.RateLimitBurst,
		logging.NewSlogAdapter(logger.With("component", "ratelimit")))
	if err != nil {
		return err
	}
	defer func() { _ = closeLimiter() }()

	serverContext := server.NewServerContext(ctx, st)
	healthChecker := server.NewHealthChecker(serverContext)

	srv, err := server.New(server.Options{
		Tokens:         tokenService,
		Dispatcher:     dispatcher,
		Authenticator:  authenticator,
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        limiter,
		TrustProxy:     opts.trustProxy,
		Health:         healthChecker,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping http server")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("http server stopped with error: %w", err)
		}
		return nil
	}

	healthChecker.SetReady(false)
	_ = serverContext.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("http server gracefully stopped")
	return nil
}

// instrumentationConfig maps the process telemetry settings onto the
// instrumentation provider.
func instrumentationConfig(cfg *config.Config) instrumentation.Config {
	t := cfg.Telemetry
	return instrumentation.Config{
		ServiceName:       instrumentation.DefaultServiceName,
		ServiceVersion:    version,
		Enabled:           t.Enabled,
		MetricsExporter:   t.MetricsExporter,
		TracingExporter:   t.TracingExporter,
		OTLPEndpoint:      t.OTLPEndpoint,
		OTLPInsecure:      t.OTLPInsecure,
		TraceSamplingRate: t.TraceSamplingRate,
		DetailedLabels:    t.DetailedLabels,
		AuditLogging: instrumentation.AuditLoggingConfig{
			Enabled:    t.AuditEnabled,
			IncludePII: t.AuditIncludePII,
		},
	}
}
