package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/stepcount/internal/activity"
	"github.com/banshee-data/stepcount/internal/api"
	"github.com/banshee-data/stepcount/internal/config"
	"github.com/banshee-data/stepcount/internal/db"
	"github.com/banshee-data/stepcount/internal/monitor"
	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/mqttconn"
	"github.com/banshee-data/stepcount/internal/publish"
	"github.com/banshee-data/stepcount/internal/sensor"
	"github.com/banshee-data/stepcount/internal/stepcount"
	"github.com/banshee-data/stepcount/internal/units"
	"github.com/banshee-data/stepcount/internal/version"
)

type options struct {
	configPath    string
	csvPath       string
	port          string
	baud          int
	mqttBroker    string
	mqttTopic     string
	mqttClientID  string
	simulate      bool
	dbPath        string
	listen        string
	recordPath    string
	plotsDir      string
	publishPrefix string
	activityModel string
	units         string
	debug         bool
	version       bool
}

func parseOptions(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("stepcount", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to tuning JSON (defaults to config/tuning.defaults.json)")
	fs.StringVar(&o.csvPath, "csv", "", "Count steps in a recorded CSV file and exit")
	fs.StringVar(&o.port, "port", "", "Serial port streaming t,x,y,z lines")
	fs.IntVar(&o.baud, "baud", sensor.DefaultBaudRate, "Serial baud rate")
	fs.StringVar(&o.mqttBroker, "mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	fs.StringVar(&o.mqttTopic, "mqtt-topic", "", "MQTT topic carrying JSON samples")
	fs.StringVar(&o.mqttClientID, "mqtt-client-id", "stepcount", "MQTT client ID")
	fs.BoolVar(&o.simulate, "simulate", false, "Stream a synthetic walk")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database for sessions and windows")
	fs.StringVar(&o.listen, "listen", ":8080", "HTTP listen address (live mode)")
	fs.StringVar(&o.recordPath, "record", "", "Record live samples to this CSV file")
	fs.StringVar(&o.plotsDir, "plots", "", "Write a spectrum PNG per window into this directory")
	fs.StringVar(&o.publishPrefix, "publish-prefix", publish.DefaultPrefix, "MQTT topic prefix for results (empty disables)")
	fs.StringVar(&o.activityModel, "activity-model", "", "Decision tree JSON for activity recognition")
	fs.StringVar(&o.units, "units", units.SPM, "Cadence units: "+units.GetValidUnitsString())
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version {
		return o, nil
	}
	return o, o.validate()
}

func (o *options) validate() error {
	inputs := 0
	for _, set := range []bool{o.csvPath != "", o.port != "", o.mqttTopic != "", o.simulate} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return errors.New("choose exactly one input: -csv, -port, -mqtt-topic or -simulate")
	}
	if o.mqttTopic != "" && o.mqttBroker == "" {
		return errors.New("-mqtt-topic requires -mqtt-broker")
	}
	if o.recordPath != "" && o.csvPath != "" {
		return errors.New("-record only applies to live input")
	}
	if !units.IsValid(o.units) {
		return fmt.Errorf("invalid -units %q: must be one of %s", o.units, units.GetValidUnitsString())
	}
	return nil
}

func (o *options) mode() stepcount.Mode {
	if o.csvPath != "" {
		return stepcount.ModeBatch
	}
	return stepcount.ModeLive
}

func (o *options) sourceName() string {
	switch {
	case o.csvPath != "":
		return o.csvPath
	case o.port != "":
		return o.port
	case o.mqttTopic != "":
		return o.mqttBroker + "/" + o.mqttTopic
	default:
		return "simulator"
	}
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		found, err := config.FindDefaultConfig()
		if err != nil {
			log.Printf("no tuning file found, using built-in defaults")
			return config.DefaultTuningConfig(), nil
		}
		path = found
	}
	return config.LoadTuningConfig(path)
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}
	if opts.version {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(opts.debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	tuning, err := loadTuning(opts.configPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	cfg := tuning.PipelineConfig()

	session, err := stepcount.NewSession(cfg, opts.mode(), opts.sourceName(), nil)
	if err != nil {
		return err
	}
	log.Printf("%s: session %s (%s) from %s", version.String(), session.ID(), session.Mode(), session.Source())

	hub := monitor.NewHub(monitor.DefaultHistory)
	session.AddSink(hub)

	var database *db.DB
	var sessions *db.SessionStore
	if opts.dbPath != "" {
		database, err = db.NewDB(opts.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		sessions = db.NewSessionStore(database.DB)
		if err := sessions.Start(session); err != nil {
			return err
		}
		session.AddSink(db.NewWindowStore(database.DB))
		defer func() {
			if err := sessions.Finish(session.ID(), session.Steps(), time.Now()); err != nil {
				log.Printf("failed to finish session %s: %v", session.ID(), err)
			}
		}()
	}

	if opts.plotsDir != "" {
		plotter, err := monitor.NewWindowPlotter(opts.plotsDir, cfg)
		if err != nil {
			return err
		}
		session.AddSink(plotter)
		defer func() { log.Printf("wrote %d spectrum plots to %s", plotter.Written(), opts.plotsDir) }()
	}

	var client mqtt.Client
	if opts.mqttBroker != "" {
		client, err = mqttconn.Connect(mqttconn.Options{
			Broker:   opts.mqttBroker,
			ClientID: opts.mqttClientID,
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		})
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		if opts.publishPrefix != "" {
			pub := publish.NewMQTTPublisher(client, opts.publishPrefix, 1)
			session.AddSink(pub)
			log.Printf("publishing results to %s and %s", pub.WindowTopic(), pub.StepsTopic())
		}
	}

	var classifier activity.Classifier
	if opts.activityModel != "" {
		tree, err := activity.LoadDecisionTree(opts.activityModel)
		if err != nil {
			return err
		}
		classifier = tree
	}

	if opts.mode() == stepcount.ModeBatch {
		return runBatch(ctx, opts, session, classifier, tuning.GetActivityWindow(), stdout)
	}

	var taps []func(motion.Sample)
	if opts.recordPath != "" {
		rec, err := motion.NewRecorder(opts.recordPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("failed to close recording: %v", err)
			}
			log.Printf("recorded %d samples to %s", rec.Count(), opts.recordPath)
		}()
		taps = append(taps, func(s motion.Sample) {
			if err := rec.Record(s); err != nil {
				log.Printf("record sample: %v", err)
			}
		})
	}
	if classifier != nil {
		taps = append(taps, activity.NewRecognizer(classifier, tuning.GetActivityWindow()).Tap)
	}

	src, closeSrc, err := openSource(opts, client)
	if err != nil {
		return err
	}
	if closeSrc != nil {
		defer closeSrc()
	}

	return runLive(ctx, opts, session, hub, database, src, taps)
}

func openSource(opts *options, client mqtt.Client) (sensor.Source, func(), error) {
	switch {
	case opts.port != "":
		ls, err := sensor.OpenSerial(opts.port, sensor.PortOptions{BaudRate: opts.baud})
		if err != nil {
			return nil, nil, err
		}
		return ls, func() { ls.Close() }, nil
	case opts.mqttTopic != "":
		return sensor.NewMQTTSource(client, opts.mqttTopic, 1), nil, nil
	default:
		return sensor.NewSimulator(sensor.DefaultSimulatorConfig(), nil), nil, nil
	}
}

func runBatch(ctx context.Context, opts *options, session *stepcount.Session, classifier activity.Classifier, activityWindow int, stdout io.Writer) error {
	samples, err := motion.LoadCSV(opts.csvPath)
	if err != nil {
		return err
	}
	results, err := session.RunBatch(ctx, samples)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d samples, %d windows, %.2f steps\n", opts.csvPath, len(samples), len(results), session.Steps())

	if classifier != nil {
		preds, err := activity.Classify(classifier, samples, activityWindow)
		if err != nil {
			return fmt.Errorf("classify activity: %w", err)
		}
		counts := make(map[string]int)
		for _, p := range preds {
			counts[p.Label]++
		}
		labels := make([]string, 0, len(counts))
		for l := range counts {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(stdout, "activity %s: %d windows\n", l, counts[l])
		}
	}
	return nil
}

func runLive(ctx context.Context, opts *options, session *stepcount.Session, hub *monitor.Hub, database *db.DB, src sensor.Source, taps []func(motion.Sample)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	samples := make(chan motion.Sample, 256)

	// read the sensor until it ends or we are told to stop
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(samples)
		if err := src.Stream(ctx, samples); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sensor stream stopped: %v", err)
		}
		log.Print("sensor routine terminated")
	}()

	// feed the pipeline; a finished feed ends the session
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := session.Run(ctx, samples, taps...); err != nil {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Printf("pipeline routine terminated at %.2f steps", session.Steps())
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(session, hub, database, opts.units).ServeMux()
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    opts.listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				cancel()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
