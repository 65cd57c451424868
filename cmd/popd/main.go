package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rexliu/popd/pkg/api"
	"github.com/rexliu/popd/pkg/config"
	"github.com/rexliu/popd/pkg/ipc"
	"github.com/rexliu/popd/pkg/logging"
	"github.com/rexliu/popd/pkg/service"
	"github.com/rexliu/popd/pkg/snapshot"
	gitvcs "github.com/rexliu/popd/pkg/vcs/git"
)

func main() {
	profile := flag.String("profile", "./_dev_profile", "Path to profile directory")
	socket := flag.String("socket", "", "Override IPC socket path (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *profile, *socket); err != nil {
		logging.New("popd").Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, profileDir, socketOverride string) error {
	cfg, err := config.LoadProfile(profileDir)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	logCfg := cfg.Logging
	logCfg.FilePath = config.ResolvePath(profileDir, logCfg.FilePath)
	logger, logCloser, err := logging.Configure("popd", logCfg)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logCloser.Close()
	logger.Info("starting daemon", "profile", profileDir, "backend", cfg.Storage.Backend)

	store, err := openStore(ctx, profileDir, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(store, service.WithLogger(logger.With("component", "service")))

	d := &daemon{logger: logger, svc: svc}
	recOpts := []snapshot.Option{snapshot.WithLogger(logger.With("component", "snapshot"))}
	if cfg.VCS.Enabled {
		repo, err := gitvcs.Open(profileDir, cfg.VCS.Branch)
		if err != nil {
			return err
		}
		if cfg.VCS.Remote.URL != "" {
			if err := repo.SetRemote(cfg.VCS.Remote.URL); err != nil {
				return fmt.Errorf("set remote: %w", err)
			}
		}
		d.repo = repo
		d.branch = repo.Branch
		recOpts = append(recOpts, snapshot.WithRepo(repo, cfg.VCS.AutoPush))
	}
	d.recorder = snapshot.NewRecorder(profileDir, svc, recOpts...)
	if _, err := d.recorder.Record(ctx, "daemon start"); err != nil {
		logger.Warn("initial snapshot failed", "error", err)
	}

	socketPath := socketOverride
	if socketPath == "" {
		socketPath = config.ResolvePath(profileDir, cfg.IPC.SocketPath)
	}
	if err := cleanupSocket(socketPath); err != nil {
		return err
	}

	srv := ipc.NewServer(logger.With("component", "ipc"))
	if cfg.IPC.RequireToken {
		srv.RequireToken(cfg.IPC.Token)
	}
	api.New(svc,
		api.WithLogger(logger),
		api.WithMutationHook(d.record),
	).Register(srv)
	d.registerVCS(srv)

	if err := srv.Start(ctx, socketPath); err != nil {
		return fmt.Errorf("start ipc: %w", err)
	}
	defer func() {
		srv.Stop()
		cleanupSocket(socketPath)
	}()

	logger.Info("daemon ready", "socket", socketPath, "methods", len(srv.Methods()))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func cleanupSocket(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
