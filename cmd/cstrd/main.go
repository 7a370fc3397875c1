package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seralt/cstrd/internal/bus"
	"github.com/seralt/cstrd/internal/command"
	"github.com/seralt/cstrd/internal/config"
	"github.com/seralt/cstrd/internal/plant"
	"github.com/seralt/cstrd/internal/reactor"
	"github.com/seralt/cstrd/internal/sim"
	"github.com/seralt/cstrd/internal/solve"
	"github.com/seralt/cstrd/internal/store"
	"github.com/seralt/cstrd/internal/telemetry"
)

var (
	configFile string
	exportPath string
	chart      bool
	pretty     bool
	iterations int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cstrd",
		Short: "closed-loop CSTR process simulator",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the simulation against the broker",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file (yaml)")
	runCmd.Flags().StringVar(&exportPath, "export", "", "write run trajectory to JSON file")
	runCmd.Flags().BoolVar(&chart, "chart", false, "print trajectory charts after the run")
	runCmd.Flags().BoolVar(&pretty, "pretty", false, "human-readable log output")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "override configured iteration count")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if iterations > 0 {
		cfg.Iterations = iterations
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Channel handles are acquired once and released at shutdown; the loop
	// itself never owns them.
	source := bus.NewKafkaSource(cfg.Broker.Address, cfg.Broker.ControlTopic, cfg.Broker.GroupID)
	defer source.Close()
	sink := bus.NewKafkaSink(cfg.Broker.Address, cfg.Broker.DataTopic)
	defer sink.Close()

	model := reactor.New(reactor.Feed{Temp: cfg.Feed.Temp, Conc: cfg.Feed.Conc})
	integ := solve.NewRK45()
	pub := telemetry.NewPublisher(sink, cfg.HealthPath, log)
	recv := command.NewReceiver(source, command.Policy{
		Attempts:    cfg.Receiver.Attempts,
		IdleTimeout: cfg.IdleTimeout(),
		PollTimeout: cfg.PollTimeout(),
	}, log)

	loop := sim.New(model, integ, pub, recv, log)
	loop.AddMetric(sim.NewControlEffort(cfg.TcSteady))
	loop.AddMetric(sim.NewTempBand(cfg.InitState.Temp-50, cfg.InitState.Temp+50))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	x0 := plant.State{cfg.InitState.Ca, cfg.InitState.Temp}
	var result *sim.Result

	for iter := 1; iter <= cfg.Iterations; iter++ {
		grid := sim.Linspace(cfg.Grid.Start, cfg.Grid.End, cfg.Grid.Points)
		u := sim.Constant(cfg.TcSteady, cfg.Grid.Points)

		log.Info().Int("iteration", iter).Int("iterations", cfg.Iterations).
			Float64("ca0", x0[0]).Float64("temp0", x0[1]).
			Msg("starting simulation run")

		var err error
		result, err = loop.Run(ctx, x0, grid, u)
		if err != nil {
			return fmt.Errorf("simulation run %d: %w", iter, err)
		}

		// The final state seeds the next run.
		x0 = result.Final.Clone()

		log.Info().Int("iteration", iter).
			Int("published", result.Published).Int("accepted", result.Accepted).Int("held", result.Held).
			Float64("ca", result.Final[0]).Float64("temp", result.Final[1]).
			Msg("simulation run complete")
		for name, value := range result.Metrics {
			log.Info().Str("metric", name).Float64("value", value).Msg("run metric")
		}
	}

	if chart && result != nil {
		fmt.Println(asciigraph.Plot(result.Temp, asciigraph.Height(12), asciigraph.Caption("reactor temperature")))
		fmt.Println(asciigraph.Plot(result.Ca, asciigraph.Height(12), asciigraph.Caption("concentration Ca")))
	}
	if exportPath != "" && result != nil {
		if err := store.ExportJSON(exportPath, cfg.Grid.Start, cfg.Grid.End, cfg.Grid.Points, cfg.Iterations, result); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		log.Info().Str("path", exportPath).Msg("trajectory exported")
	}

	return nil
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
