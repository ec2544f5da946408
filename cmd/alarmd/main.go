// alarmd - MQTT alarm controller
//
// alarmd keeps the armed and entry_alarm flags of a distributed alarm system
// on an MQTT broker. It clears both flags at startup, toggles the armed flag
// on button presses, raises the entry alarm on motion while armed, and exits
// when a stop message arrives.
//
// Usage:
//
//	alarmd [--config configs/config.yaml] <broker-address>
//	alarmd migrate up|down|status
//	alarmd version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/api"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-alarm/internal/journal"
	"github.com/nerrad567/gray-logic-alarm/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// pruneInterval is how often the journal pruner runs.
const pruneInterval = time.Hour

// shutdownNotice is printed to stdout when the controller stops on request.
const shutdownNotice = "Shutting down"

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options carries the command-line inputs to run.
type options struct {
	brokerAddr string
	configPath string

	// configRequired makes a missing config file an error. False when the
	// default path is used.
	configRequired bool

	// stdout receives the shutdown notice.
	stdout io.Writer
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Broker address, config path and output writer
//
// Returns:
//   - error: nil after a stop message or a shutdown signal, otherwise the failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting alarm controller",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.MQTT.SetBrokerAddress(opts.brokerAddr); err != nil {
		return fmt.Errorf("parsing broker address: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"broker", cfg.MQTT.BrokerAddress(),
		"prefix", cfg.Alarm.Prefix,
	)

	observers := []alarm.Observer{alarm.LogObserver(log.With("component", "alarm"))}

	// Event journal (optional)
	var history journal.Repository
	if cfg.Database.Enabled {
		db, err := database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", cfg.Database.Path)

		repo := journal.NewSQLiteRepository(db.DB)
		history = repo

		recorder := journal.NewRecorder(repo, log.With("component", "journal"))
		observers = append(observers, recorder)
		log.Info("alarm journal enabled", "session_id", recorder.SessionID())

		stopPruner := startPruner(ctx, repo, cfg.Database.Retention(), log)
		defer stopPruner()
	} else {
		log.Info("alarm journal disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", cfg.MQTT.BrokerAddress(),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		observers = append(observers, telemetryObserver{client: influxClient})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Status API (optional)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Journal: history,
			MQTT:    mqttClient,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		observers = append(observers, apiServer)
	} else {
		log.Info("status API disabled")
	}

	topics := alarm.NewTopics(cfg.Alarm.Prefix)
	source := alarm.NewSource(cfg.Alarm.EventBuffer)
	defer source.Close()

	controller, err := alarm.NewController(mqttClient, alarm.Options{
		Topics:      topics,
		QoS:         byte(cfg.Alarm.QoS),
		ClearOnStop: cfg.Alarm.ClearOnStop,
		Logger:      log.With("component", "alarm"),
		Observers:   observers,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	// Boot before subscribing to the alarm namespace so the broker only
	// hands back the cleared retained values, never a previous run's state.
	if err := controller.Boot(); err != nil {
		log.Error("publishing boot state", "error", err)
	}

	// A failed subscription stays tracked and is retried on reconnect.
	if err := mqttClient.Subscribe(mqtt.SysBrokerVersion, 0, brokerVersionHandler(log)); err != nil {
		log.Warn("subscribing to broker version", "topic", mqtt.SysBrokerVersion, "error", err)
	}
	if err := mqttClient.Subscribe(topics.Filter(), byte(cfg.Alarm.QoS), source.Deliver); err != nil {
		log.Warn("subscribing to alarm topics", "topic", topics.Filter(), "error", err)
	}
	defer unsubscribeAll(mqttClient, log, topics.Filter(), mqtt.SysBrokerVersion)

	log.Info("initialisation complete, waiting for alarm events", "filter", topics.Filter())

	err = controller.Run(ctx, source.Events())
	switch {
	case err == nil:
		fmt.Fprintln(opts.stdout, shutdownNotice)
		log.Info("alarm controller stopped", "reason", "stop message")
		return nil
	case errors.Is(err, context.Canceled):
		log.Info("shutdown signal received, cleaning up")
		return nil
	default:
		return fmt.Errorf("running controller: %w", err)
	}
}

// loadConfig reads the config file. A missing file is only an error when
// the path was given explicitly.
func loadConfig(opts options) (*config.Config, error) {
	if opts.configRequired {
		return config.Load(opts.configPath)
	}
	return config.LoadOptional(opts.configPath)
}

// unsubscribeAll drops the controller's subscriptions before disconnecting
// so no further messages reach a closed source.
func unsubscribeAll(client *mqtt.Client, log *logging.Logger, filters ...string) {
	for _, filter := range filters {
		if err := client.Unsubscribe(filter); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			log.Warn("unsubscribing", "topic", filter, "error", err)
		}
	}
}

// startPruner runs the journal pruner in the background and returns a
// function that stops it and waits for it to exit.
func startPruner(ctx context.Context, repo journal.Repository, retention time.Duration, log *logging.Logger) func() {
	pruneCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		journal.RunPruner(pruneCtx, repo, retention, pruneInterval, log.With("component", "journal"))
	}()

	return func() {
		cancel()
		<-done
	}
}

// brokerVersionHandler logs the broker's $SYS version announcement.
func brokerVersionHandler(log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		log.Debug("broker version", "topic", topic, "version", string(payload))
		return nil
	}
}
