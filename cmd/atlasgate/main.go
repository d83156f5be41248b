package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/atlasgate/internal/auth"
	"github.com/danmuck/atlasgate/internal/config"
	"github.com/danmuck/atlasgate/internal/engine"
	"github.com/danmuck/atlasgate/internal/engine/command"
	"github.com/danmuck/atlasgate/internal/logging"
	"github.com/danmuck/atlasgate/internal/observability"
	"github.com/danmuck/atlasgate/internal/server"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "atlasgate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("atlasgate", flag.ContinueOnError)
	path := fs.String("config", "atlasgate.toml", "path to gateway config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.ConfigureRuntime()

	rt, err := setup(*path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rt.serve(ctx)
}

type runtime struct {
	path    string
	cfg     config.Config
	coord   *engine.Coordinator
	tokens  *auth.TokenSet
	metrics *observability.Metrics
	srv     *server.Server
}

func setup(path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	eng, err := command.New(cfg.Engine)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics()
	coord := engine.NewCoordinator(eng, cfg.AutoPolicy)
	coord.SetObserver(metrics)
	tokens := auth.NewTokenSet(cfg.Tokens)
	srv := server.New(cfg, coord, tokens,
		server.WithRecorder(metrics),
		server.WithConfigPath(path),
	)
	return &runtime{
		path:    path,
		cfg:     cfg,
		coord:   coord,
		tokens:  tokens,
		metrics: metrics,
		srv:     srv,
	}, nil
}

// serve runs the gateway with its health endpoint, config watcher and SIGHUP
// token reload until ctx is done or one of them fails.
func (rt *runtime) serve(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.srv.Run(gctx)
	})
	if addr := rt.cfg.HealthListenAddr; addr != "" {
		g.Go(func() error {
			return observability.Serve(gctx, addr, observability.NewRouter(rt.srv, rt.metrics, rt.cfg.CorsOrigins))
		})
	}
	if rt.cfg.Watch {
		g.Go(func() error {
			return config.Watch(gctx, rt.path, rt.applyConfig)
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := rt.reloadTokens(); err != nil {
					log.Warn().Err(err).Msg("atlasgate.reload failed")
				}
			}
		}
	})
	return g.Wait()
}

func (rt *runtime) reloadTokens() error {
	cfg, err := config.Load(rt.path)
	if err != nil {
		return err
	}
	rt.applyConfig(cfg)
	return nil
}

// applyConfig swaps in the reloaded token set. Other settings need a restart.
func (rt *runtime) applyConfig(cfg config.Config) {
	rt.tokens.Replace(cfg.Tokens)
	log.Info().Int("tokens", rt.tokens.Len()).Msg("atlasgate.tokens reloaded")
}
