package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arborchain/arbor/engine/executor"
	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module/irrecoverable"
	"github.com/arborchain/arbor/module/metrics"
	"github.com/arborchain/arbor/module/util"
	"github.com/arborchain/arbor/network/rpc"
	storagebadger "github.com/arborchain/arbor/storage/badger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executor",
		Short: "Consumes the committed certificate stream and delivers ordered transaction batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	flags := cmd.Flags()
	flags.String("loglevel", "info", "log level (trace, debug, info, warn, error)")
	flags.String("datadir", "/data/executor", "directory for the badger database")
	flags.StringSlice("workers", nil, "worker endpoints as id=host:port pairs")
	flags.Duration("request-timeout", rpc.DefaultRequestTimeout, "timeout for a single remote batch request")
	flags.Uint("metrics-port", 9090, "port for the prometheus metrics server")
	flags.Uint64("retry-attempts", 3, "total remote fetch attempts per batch before giving up")
	flags.Int64("max-concurrent-fetches", 16, "maximum number of concurrent remote batch fetches")
	flags.Duration("shutdown-grace", time.Second, "time granted to in-flight fetches on shutdown")
	flags.Int("committed-queue-capacity", 64, "capacity of the inbound committed sub-dag queue")
	flags.Int("notifier-capacity", 16, "capacity of the outbound channel to the notifier")

	err := viper.BindPFlags(flags)
	if err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("ARBOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return cmd
}

func run() error {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(viper.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log = log.Level(level)

	workers, err := parseWorkers(viper.GetStringSlice("workers"))
	if err != nil {
		return fmt.Errorf("invalid worker endpoints: %w", err)
	}

	db, err := badger.Open(badger.
		DefaultOptions(viper.GetString("datadir")).
		WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}

	collector := metrics.NewExecutorCollector(prometheus.DefaultRegisterer)
	server := metrics.NewServer(log, viper.GetUint("metrics-port"))

	client := rpc.NewClient(log, rpc.Config{
		Workers:        workers,
		RequestTimeout: viper.GetDuration("request-timeout"),
	})

	batches := storagebadger.NewBatches(db)
	progress := storagebadger.NewExecutedProgress(db)
	subdags := storagebadger.NewSubDags(db)

	fetcherCfg := executor.DefaultFetcherConfig()
	fetcherCfg.RetryAttempts = viper.GetUint64("retry-attempts")
	fetcher, err := executor.NewFetcher(log, collector, batches, client, fetcherCfg)
	if err != nil {
		return fmt.Errorf("could not create fetcher: %w", err)
	}

	schedulerCfg := executor.DefaultSchedulerConfig()
	schedulerCfg.MaxConcurrentFetches = viper.GetInt64("max-concurrent-fetches")
	schedulerCfg.ShutdownGrace = viper.GetDuration("shutdown-grace")
	scheduler := executor.NewScheduler(log, collector, fetcher, schedulerCfg)

	reassembler := executor.NewReassembler(log, collector, scheduler)
	recovery := executor.NewRecovery(log, progress, subdags)

	subscriber := executor.NewSubscriber(log, collector, scheduler, reassembler, recovery, subdags, executor.SubscriberConfig{
		CommittedQueueCapacity: viper.GetInt("committed-queue-capacity"),
		NotifierCapacity:       viper.GetInt("notifier-capacity"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	<-server.Ready()
	subscriber.Start(signalerCtx)

	go func() {
		select {
		case <-subscriber.Ready():
			log.Info().Msg("executor startup complete")
		case <-ctx.Done():
		}
	}()

	// sink for resolved outputs until a real notifier is attached over RPC
	go func() {
		for output := range subscriber.Output() {
			log.Info().
				Uint64("subdag", output.SubDag.Index).
				Uint64("round", uint64(output.SubDag.Round)).
				Int("batches", output.SubDag.NumBatches()).
				Msg("delivered consensus output")
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Str("signal", sig.String()).Msg("executor shutting down")
		cancel()
	case err := <-errChan:
		log.Error().Err(err).Msg("unhandled irrecoverable error")
		cancel()
	}

	if err := util.WaitError(errChan, subscriber.Done()); err != nil {
		log.Error().Err(err).Msg("unhandled irrecoverable error during shutdown")
	}
	<-server.Done()

	var closeErr *multierror.Error
	closeErr = multierror.Append(closeErr, client.Close())
	closeErr = multierror.Append(closeErr, db.Close())
	if err := closeErr.ErrorOrNil(); err != nil {
		return fmt.Errorf("could not shut down cleanly: %w", err)
	}

	log.Info().Msg("executor shutdown complete")
	return nil
}

// parseWorkers parses id=host:port pairs into the worker address map.
func parseWorkers(pairs []string) (map[dag.WorkerID]string, error) {
	workers := make(map[dag.WorkerID]string, len(pairs))
	for _, pair := range pairs {
		id, addr, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed worker endpoint %q, expected id=host:port", pair)
		}
		parsed, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed worker id %q: %w", id, err)
		}
		workers[dag.WorkerID(parsed)] = addr
	}
	return workers, nil
}
