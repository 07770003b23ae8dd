package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/odvcencio/glint/pkg/apphost"
	"github.com/odvcencio/glint/pkg/bus"
	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/ipc"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
	"github.com/odvcencio/glint/pkg/ui/backend"
	"github.com/odvcencio/glint/pkg/ui/backend/tcell"
	"github.com/odvcencio/glint/pkg/ui/runtime"
)

// Sender used for messages the device itself broadcasts.
const systemSender = "glint"

type options struct {
	configPath string
	headless   bool
	listen     string
	module     string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a config file (default ~/.glint/config.yaml)")
	flag.BoolVar(&opts.headless, "headless", false, "run against an in-memory display")
	flag.StringVar(&opts.listen, "listen", "", "serve the management API on this address")
	flag.StringVar(&opts.module, "module", "", "module to launch instead of the configured shell")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.headless {
		cfg.Display.Headless = true
	}
	if opts.listen != "" {
		cfg.IPC.Enabled = true
		cfg.IPC.Bind = opts.listen
	}
	if opts.module != "" {
		cfg.Apps.Shell = opts.module
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.File == "" {
		// The display may own stdout; logs go to stderr.
		return logging.New(os.Stderr, "glint", level), io.NopCloser(nil), nil
	}
	f, err := logging.OpenFile(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, "glint", level), f, nil
}

func openDevice(cfg config.DisplayConfig, log *logging.Logger) (backend.Device, error) {
	if cfg.Headless || !isInteractiveTerminal() {
		log.Info("using in-memory display", "width", cfg.Width, "height", cfg.Height)
		return backend.NewMemory(cfg.Width, cfg.Height), nil
	}
	return tcell.New()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logFile, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	for _, w := range cfg.ValidationWarnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Tracing {
		tp, err := telemetry.NewTracerProvider(ctx, "glint", os.Stderr)
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}
	metrics := telemetry.Default()

	messages := bus.New(bus.WithLogger(log), bus.WithMetrics(metrics))
	defer messages.Close()
	if cfg.Bus.NATSURL != "" {
		conn, err := bus.Dial(cfg.Bus, "glint")
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		defer conn.Close()
		bridge, err := bus.NewNATSBridge(messages, conn, cfg.Bus.Subject, log)
		if err != nil {
			return fmt.Errorf("bridge bus: %w", err)
		}
		defer bridge.Close()
		log.Info("bus bridged", "url", cfg.Bus.NATSURL, "origin", bridge.Origin())
	}

	device, err := openDevice(cfg.Display, log)
	if err != nil {
		return fmt.Errorf("open display: %w", err)
	}
	app, err := runtime.NewApp(runtime.AppConfig{
		Device:     device,
		Touch:      cfg.Touch,
		Overlay:    cfg.Overlay,
		ShowCursor: cfg.Display.ShowCursor,
		TickRate:   cfg.Display.TickRate,
		OnTick: func(now time.Time) {
			_, _ = messages.Broadcast(systemSender, topicClockTick, now.Format(time.RFC3339))
		},
		Logger:  log,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	catalog := apphost.NewCatalog(config.ResolveModuleDir(cfg), log)
	if err := catalog.Scan(); err != nil {
		log.Warn("scan module catalog", "dir", catalog.Dir(), "error", err)
	}

	registry := apphost.NewRegistry()
	for _, m := range builtinModules(app, app.Do, cfg, registry, catalog) {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	host := apphost.NewHost(registry, app.Screen(), cfg.Apps,
		apphost.WithLogger(log),
		apphost.WithMetrics(metrics),
		apphost.WithBus(messages),
		apphost.WithCatalog(catalog))
	host.OnClosed(func(c apphost.Closure) {
		if c.Err != nil {
			app.Toasts().Error(fmt.Sprintf("%s: %v", c.Module, c.Err))
		}
		_, _ = messages.Broadcast(systemSender, topicContextClosed, c.ID, c.Module)
	})

	app.Do(func() {
		if _, err := host.Load(ctx, cfg.Apps.Shell, "", nil); err != nil {
			log.Error("launch shell", "module", cfg.Apps.Shell, "error", err)
			app.Toasts().Error("cannot start " + cfg.Apps.Shell)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		app.Do(func() {
			host.TerminateAll()
			app.Quit()
		})
		return nil
	})
	g.Go(func() error {
		defer stop()
		return app.Run(context.Background())
	})
	if cfg.Apps.Watch {
		catalog.OnChange(func() {
			_, _ = messages.Broadcast(systemSender, topicCatalogChanged)
		})
		g.Go(func() error {
			if err := catalog.Watch(gctx); err != nil && gctx.Err() == nil {
				log.Warn("module watch stopped", "error", err)
			}
			return nil
		})
	}
	if cfg.IPC.Enabled {
		server := ipc.NewServer(cfg.IPC, host, messages,
			ipc.WithExecutor(app.Do),
			ipc.WithLogger(log),
			ipc.WithMetrics(metrics))
		g.Go(func() error { return server.Start(gctx) })
	}
	return g.Wait()
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
