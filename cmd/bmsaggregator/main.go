package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/bmsaggregator/internal/adapter/actor"
	"github.com/berfenger/bmsaggregator/internal/config"
	"github.com/berfenger/bmsaggregator/internal/core/actor"
	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/service"
	"github.com/berfenger/bmsaggregator/internal/server"
	"github.com/berfenger/bmsaggregator/internal/util/actorutil"

	"github.com/alexflint/go-arg"
	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Args struct {
	Config   string `arg:"-c, --config, env:CONFIG_FILE" help:"yaml configuration file"`
	LogLevel string `arg:"-l, --log-level" help:"override log_level (trace, debug, info, warn, error, fatal)"`
}

func (Args) Version() string {
	return fmt.Sprintf("bmsaggregator %s", versioninfo.Short())
}

func procArgs() Args {
	args := Args{}
	arg.MustParse(&args)
	return args
}

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	if err := runMain(); err != nil {
		slog.Error("bmsaggregator", "error", err)
		os.Exit(1)
	}
}

func runMain() error {

	args := procArgs()

	// load and print config
	v := viper.New()
	if args.LogLevel != "" {
		v.Set("log_level", args.LogLevel)
	}
	cfg, err := config.Load(v, args.Config)
	if err != nil {
		return fmt.Errorf("config errors: %w", err)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting", zap.String("version", versioninfo.Short()), zap.String("source", cfg.Source),
		zap.Int("units", len(cfg.Units)))

	// unit readers and publishers
	readers, err := unitReaders(cfg, logger)
	if err != nil {
		return err
	}

	providers := actor.ActorProviders{
		BMU: func() pactor.Actor {
			return adactor.NewBMUActor(readers, time.Duration(cfg.Monitor.ReadTimeoutMillis)*time.Millisecond, logger)
		},
	}
	if cfg.MQTT.Enable {
		providers.MQTT = func() pactor.Actor {
			return adactor.NewMQTTActor(cfg, logger)
		}
	}
	if cfg.VEDBus.Publish {
		battery, err := virtualBattery(cfg, logger)
		if err != nil {
			return err
		}
		providers.VEDBus = func() pactor.Actor {
			return adactor.NewVEDBusActor(battery, cfg.Limits(), logger)
		}
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	engine := service.NewDecisionEngine(cfg.Policy(), logger)
	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(cfg, engine, providers, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return fmt.Errorf("spawn master: %w", err)
	}

	server := server.NewServer(cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Warn("master stop", zap.Error(err))
	}
	as.Shutdown()
	return nil
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
