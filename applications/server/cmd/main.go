package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/formproxy/applications/server"
	"github.com/donmikel/formproxy/applications/server/adapters/inmemory"
	"github.com/donmikel/formproxy/applications/server/adapters/sqlite"
	"github.com/donmikel/formproxy/applications/server/adapters/wufoo"
	"github.com/donmikel/formproxy/applications/server/config"
	"github.com/donmikel/formproxy/applications/server/handlers/http"
	"github.com/donmikel/formproxy/applications/server/interfaces"
	"github.com/donmikel/formproxy/applications/server/services"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

// Kubernetes (rolling update) doesn't wait until a pod is out of rotation before sending SIGTERM,
// and external LB could still route traffic to a non-existing pod resulting in a surge of 50x API errors.
// It's recommended to wait for 5 seconds before terminating the program; see references
// https://github.com/kubernetes-retired/contrib/issues/1140, https://youtu.be/me5iyiheOC8?t=1797.
const preStopWait = 5 * time.Second

// Shutdown timeout for http servers.
const shutdownTimeout = 5 * time.Second

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	envPath := fs.String("env", ".env", "path to an optional dotenv file with vendor credentials")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return exitSuccess
	}
	if err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		if version == "" {
			level.Error(logger).Log("msg", "version not set")
		} else {
			level.Info(logger).Log("version", version)
		}

		return exitSuccess
	}

	if err = godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log("msg", "cannot load env file", "path", *envPath, "err", err)
		return exitFailure
	}

	logger.Log("configPath", *configPath)

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logger.Log("msg", "cannot parse service config", "err", err)
		return exitFailure
	}
	cfg.ApplyEnv(os.LookupEnv)

	err = cfg.Validate()
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	// It's nice to be able to see panics in Logs, hence we monitor for panics after
	// logger has been bootstrapped.
	defer monitorPanic(logger)
	ctx := context.Background()

	var pictureStore interfaces.PictureStore
	{
		pictureStore, err = newPictureStore(ctx, cfg.Store, logger)
		if err != nil {
			level.Error(logger).Log("msg", "error creating picture store",
				"driver", cfg.Store.Driver,
				"err", err,
			)

			return exitFailure
		}
		defer pictureStore.Close()
	}

	var formVendor interfaces.FormVendor
	{
		formVendor = wufoo.NewClient(cfg.Vendor, logger)
		if !formVendor.Configured() {
			level.Warn(logger).Log("msg", "form vendor domain not configured, form operations will answer with a config error")
		}
	}

	var formService server.FormService
	{
		formService = services.NewService(formVendor, pictureStore, logger,
			services.WithAssetBaseURL(cfg.Vendor.AssetBaseURL),
			services.WithDeleteConcurrency(cfg.Store.DeleteConcurrency),
		)
	}

	hServer := http.NewHTTPServer(cfg.API, formService, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, s))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		level.Info(logger).Log("msg", "listening", "addr", cfg.API.HTTPAddr)
		if err := hServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("listen and server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		level.Info(logger).Log("msg", "waiting for background picture deletions")
		formService.Wait()

		return ctx.Err()
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

func newPictureStore(ctx context.Context, conf config.Store, logger log.Logger) (interfaces.PictureStore, error) {
	switch conf.Driver {
	case config.DriverSQLite:
		return sqlite.NewPictureStore(ctx, conf.DSN, logger)
	default:
		return inmemory.NewPictureStore(logger)
	}
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
