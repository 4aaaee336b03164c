package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ChristopherRabotin/ascent"
	"github.com/ChristopherRabotin/ascent/recorder"
	"github.com/ChristopherRabotin/ascent/telemetry"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// Runs a scenario from launch until the requested duration has elapsed.

const (
	defaultScenario = "~~unset~~"
	dateFormat      = "2006-01-02 15:04:05"
)

var (
	scenario    string
	duration    float64
	timeStep    float64
	launch      bool
	detach      string
	record      string
	resume      bool
	exportDir   string
	metricsAddr string
	influxURL   string
	influxFile  string
	verbose     bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario TOML file, defaults to $ASCENT_CONFIG or the built-in shuttle")
	flag.Float64Var(&duration, "duration", 600, "simulated seconds")
	flag.Float64Var(&timeStep, "dt", 1.0/60, "time step in seconds")
	flag.BoolVar(&launch, "launch", false, "command the liftoff on the first tick")
	flag.StringVar(&detach, "detach", "", "comma separated components to detach on the first tick")
	flag.StringVar(&record, "record", "", "flight recorder database, a sqlite path or a postgres:// DSN")
	flag.BoolVar(&resume, "resume", false, "resume the latest run of the flight recorder")
	flag.StringVar(&exportDir, "export", "", "directory of the trajectory and CSV exports")
	flag.StringVar(&metricsAddr, "metrics", "", "listen address of the Prometheus metrics, e.g. :9090")
	flag.StringVar(&influxURL, "influx", "", "InfluxDB URL; token, org and bucket are read from INFLUX_TOKEN, INFLUX_ORG and INFLUX_BUCKET")
	flag.StringVar(&influxFile, "influx-backup", "", "write the InfluxDB line protocol to this file instead")
	flag.BoolVar(&verbose, "verbose", false, "log every debug record")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ascent: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readScenario()
	if err != nil {
		return err
	}
	logger := ascent.DefaultLogger(cfg.Vehicle.Name)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	epoch := readEpoch()

	sim, err := ascent.NewSimulation(cfg, logger)
	if err != nil {
		return err
	}

	var rec *recorder.Recorder
	if record != "" {
		db, err := recorder.Open(record)
		if err != nil {
			return fmt.Errorf("opening %s: %w", record, err)
		}
		if resume {
			last, err := recorder.LatestRun(db)
			if err != nil {
				return fmt.Errorf("no run to resume: %w", err)
			}
			if cfg, err = recorder.RunConfig(last); err != nil {
				return err
			}
			st, err := recorder.LatestState(db, last.ID)
			if err != nil {
				return err
			}
			if sim, err = ascent.NewSimulation(cfg, logger); err != nil {
				return err
			}
			if err := sim.Restore(st); err != nil {
				return err
			}
			epoch = last.Epoch
		}
		if rec, err = recorder.New(db, cfg.Vehicle.Name, epoch, cfg, 1, logger); err != nil {
			return err
		}
		sim.AddListener(rec.Observe)
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := telemetry.NewCollector(reg)
		if err != nil {
			return err
		}
		sim.AddListener(collector.Observe)
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("subsys", "metrics", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	switch {
	case influxURL != "":
		sink, closer := telemetry.DialInflux(influxURL, os.Getenv("INFLUX_TOKEN"), os.Getenv("INFLUX_ORG"), os.Getenv("INFLUX_BUCKET"), cfg.Vehicle.Name, epoch, logger)
		defer closer()
		sim.AddListener(sink.Observe)
	case influxFile != "":
		f, err := os.Create(influxFile)
		if err != nil {
			return err
		}
		defer f.Close()
		sim.AddListener(telemetry.NewInfluxSink(cfg.Vehicle.Name, epoch, nil, f, logger).Observe)
	}

	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return err
		}
		conf := ascent.ExportConfig{
			Dir:      exportDir,
			Filename: fmt.Sprintf("%s-%s", cfg.Vehicle.Name, epoch.Format("2006-01-02-15.04.05")),
			Name:     cfg.Vehicle.Name,
			Center:   "Earth",
			Cosmo:    true,
			AsCSV:    true,
			Every:    1,
			Epoch:    epoch,
		}
		snapChan := make(chan ascent.Snapshot, 1000)
		exportDone := make(chan error, 1)
		go func() {
			exportDone <- ascent.StreamSnapshots(conf, snapChan)
		}()
		sim.AddListener(func(s ascent.Snapshot) { snapChan <- s })
		defer func() {
			close(snapChan)
			if err := <-exportDone; err != nil {
				level.Error(logger).Log("subsys", "export", "err", err)
			}
		}()
	}

	if launch {
		sim.Submit(ascent.LaunchCommand{})
	}
	for _, comp := range strings.Split(detach, ",") {
		if comp = strings.TrimSpace(comp); comp != "" {
			sim.Submit(ascent.DetachCommand{Component: comp})
		}
	}

	level.Info(logger).Log("subsys", "astro", "start", epoch.Format(dateFormat), "duration", duration, "dt", timeStep)
	sim.RunFor(duration, timeStep)
	sim.LogStatus()

	if rec != nil {
		if err := rec.SaveState(sim.State()); err != nil {
			return err
		}
		if err := rec.Err(); err != nil {
			return fmt.Errorf("flight recorder: %w", err)
		}
	}
	return nil
}

func readScenario() (ascent.Config, error) {
	if scenario != defaultScenario {
		return ascent.LoadConfig(scenario)
	}
	return ascent.ConfigFromEnv()
}

// readEpoch returns the launch date of the scenario, or now.
func readEpoch() time.Time {
	if scenario == defaultScenario {
		return time.Now().UTC()
	}
	v := viper.New()
	v.SetConfigFile(scenario)
	if err := v.ReadInConfig(); err != nil || !v.IsSet("mission.epoch") {
		return time.Now().UTC()
	}
	if dt, err := time.Parse(dateFormat, v.GetString("mission.epoch")); err == nil {
		return dt.UTC()
	}
	return v.GetTime("mission.epoch").UTC()
}

