package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/basicai/pceditor/internal/config"
	"github.com/basicai/pceditor/internal/dispatcher"
	"github.com/basicai/pceditor/internal/editor"
	"github.com/basicai/pceditor/internal/filter"
	"github.com/basicai/pceditor/internal/influx"
	"github.com/basicai/pceditor/internal/logging"
	"github.com/basicai/pceditor/internal/monitor"
	intOtel "github.com/basicai/pceditor/internal/otel"
	"github.com/basicai/pceditor/internal/scene"
	"github.com/basicai/pceditor/internal/session"
	"github.com/basicai/pceditor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "pceditor"
)

var (
	// ConfigDir holds pceditor.cfg.json. PCEDITOR_CONFIG_DIR overrides it.
	ConfigDir string = "."

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the components that log through zerolog
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Session is the state attached to every log record
	Session *session.Context = session.NewContext(SessionStartTime)
)

func main() {
	if dir := os.Getenv("PCEDITOR_CONFIG_DIR"); dir != "" {
		ConfigDir = dir
	}
	setupLogging()
	defer shutdownLogging()

	var err error
	args := os.Args[1:]
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "export":
			err = runExport(context.Background(), args[1:])
		case "dumps":
			err = listDumps(args[1:])
		case "version":
			fmt.Println(CurrentVersion, BuildDate)
		default:
			err = fmt.Errorf("unknown subcommand %q", args[0])
		}
	} else {
		err = run()
	}
	if err != nil {
		Logger.Error("pceditor failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		shutdownLogging()
		os.Exit(1)
	}
}

func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", ConfigDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	// a previous run in the same second is kept as .old
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var logWriter io.Writer
		if LogFile != nil {
			logWriter = LogFile
		}
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	opts := []logging.SetupOption{logging.WithContext(Session.Attrs)}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			Logger.Warn("Graylog unavailable", "error", err)
		} else {
			opts = append(opts, logging.WithGraylog(w))
		}
	}

	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	SlogManager.Setup(file, viper.GetString("logLevel"), otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	zlevel, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("logLevel")))
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	var zout io.Writer = os.Stderr
	if LogFile != nil {
		zout = LogFile
	}
	ZLogger = zerolog.New(zout).Level(zlevel).With().Timestamp().Str("service", logging.ServiceName).Logger()

	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "otel shutdown:", err)
		}
		OTelProvider = nil
	}
	if SlogManager != nil {
		_ = SlogManager.Flush(ctx)
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

func editorConfig(c config.EditorConfig) editor.Config {
	return editor.Config{
		SeriesFrame:  c.SeriesFrame,
		HistoryLimit: c.HistoryLimit,
		MinBoxScale:  c.MinBoxScale,
		Confidence:   filter.Range{Min: c.ConfidenceMin, Max: c.ConfidenceMax},
	}
}

// startInflux connects the edit telemetry sink. A nil manager means
// telemetry is off.
func startInflux(ctx context.Context) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	m := influx.NewManager(ZLogger.With().Str("component", "influx").Logger(), cfg)
	if err := m.Connect(ctx); err != nil {
		Logger.Warn("Edit telemetry disabled", "error", err)
		return nil
	}
	return m
}

func startMonitor(mc config.MonitorConfig, sink *influx.Manager) *monitor.Service {
	deps := monitor.Dependencies{
		Logger:     Logger,
		Interval:   mc.Interval,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
		Bucket:     influx.BucketPerformance,
	}
	if sink != nil {
		deps.Writer = sink
	}
	s := monitor.NewService(deps)
	if err := s.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}
	return s
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageCfg := config.GetStorageConfig()
	backend, err := initStorage(ctx, storageCfg, Logger, SessionStartTime)
	if err != nil {
		return err
	}
	Session.SetStorage(storageCfg.Type)
	defer closeStorage(backend)

	in := bufio.NewReader(os.Stdin)
	edCfg := config.GetEditorConfig()
	ui := newCLIUI(in, os.Stdout, edCfg.AutoConfirm)

	ed, err := editor.New(scene.NewMemory(), ui, editorConfig(edCfg),
		editor.WithStore(backend),
		editor.WithLogger(Logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := ed.Close(); err != nil {
			Logger.Warn("Failed to release editor metrics", "error", err)
		}
	}()

	a := &app{logger: Logger, editor: ed, session: Session}
	if m := startInflux(ctx); m != nil {
		a.influx = m
		unsubscribe := ed.Commands().Subscribe(m.Recorder(Session.FrameID))
		defer func() {
			unsubscribe()
			if err := m.Close(); err != nil {
				Logger.Warn("Failed to close InfluxDB client", "error", err)
			}
		}()
	}

	if mc := config.GetMonitorConfig(); mc.Enabled {
		a.monitor = startMonitor(mc, a.influx)
		defer a.monitor.Stop()
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()
	registerHandlers(d, a)
	Logger.Info("Dispatcher ready", "commands", len(d.Commands()))

	go func() {
		<-ctx.Done()
		// unblocks the pending read
		_ = os.Stdin.Close()
	}()

	return commandLoop(ctx, in, os.Stdout, d, a, ui)
}

func closeStorage(backend storage.Backend) {
	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
		return
	}
	if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		Logger.Info("Results exported", "path", exp.ExportedFilePath())
	}
}

// commandLoop dispatches one command per input line until EOF or ctx is
// cancelled. Replies are "ok <json>" or "error <message>".
func commandLoop(ctx context.Context, in *bufio.Reader, out io.Writer, d *dispatcher.Dispatcher, a *app, ui editor.UI) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, readErr := in.ReadString('\n')
		if ev, ok := dispatcher.ParseLine(strings.TrimSpace(line), time.Now()); ok {
			res, err := d.Dispatch(ev)
			a.afterDispatch()
			writeReply(out, ev.Command, res, err)
			if errors.Is(err, dispatcher.ErrUnknownCommand) {
				ui.ShowMsg(editor.MsgError, err.Error())
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading commands: %w", readErr)
		}
	}
}

func writeReply(out io.Writer, command string, res any, err error) {
	if err != nil {
		fmt.Fprintf(out, "error %s %v\n", command, err)
		return
	}
	if res == nil {
		fmt.Fprintf(out, "ok %s\n", command)
		return
	}
	data, mErr := json.Marshal(res)
	if mErr != nil {
		fmt.Fprintf(out, "error %s %v\n", command, mErr)
		return
	}
	fmt.Fprintf(out, "ok %s %s\n", command, data)
}
