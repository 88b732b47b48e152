package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/gravityvi/Todo-app-cansiter/internal/api"
	"github.com/gravityvi/Todo-app-cansiter/internal/config"
	"github.com/gravityvi/Todo-app-cansiter/internal/db"
	"github.com/gravityvi/Todo-app-cansiter/internal/lifecycle"
	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
	"github.com/gravityvi/Todo-app-cansiter/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `Usage: todo [command]

Commands:
  (none)      open the task list in the terminal
  serve       serve the task API over HTTP
  version     print version information
`

func main() {
	serve := false
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("todo %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		case "--help", "-h", "help":
			fmt.Print(usage)
			os.Exit(0)
		case "serve":
			serve = true
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
			os.Exit(2)
		}
	}

	if err := run(serve); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(serve bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg, serve)
	if err != nil {
		return err
	}
	defer log.Close()
	log.Info("starting", map[string]interface{}{"version": version, "serve": serve, "config": cfg.Path})

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	store := taskstore.New()
	hooks := lifecycle.NewHooks(store, database, log, cfg.Snapshots.Keep)
	if err := hooks.AfterRestart(context.Background()); err != nil {
		database.Close()
		return fmt.Errorf("restore tasks: %w", err)
	}

	coordinator := lifecycle.NewCoordinator(cfg.ShutdownTimeout.Duration, log)

	if serve {
		return runServer(cfg, store, hooks, database, coordinator, log)
	}
	return runTUI(store, hooks, database, coordinator, log)
}

func newLogger(cfg config.Config, serve bool) (*logging.Logger, error) {
	var log *logging.Logger
	if serve {
		log = logging.New()
	} else {
		// The terminal belongs to the UI
		var err error
		log, err = logging.Open(cfg.LogFile)
		if err != nil {
			return nil, err
		}
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("log_level: %w", err)
	}
	log.SetLevel(level)
	return log, nil
}

func runTUI(store *taskstore.Store, hooks *lifecycle.Hooks, database *db.DB, coordinator *lifecycle.Coordinator, log *logging.Logger) error {
	coordinator.RegisterCritical("snapshot", hooks.BeforeTeardown)
	coordinator.RegisterCritical("database", func(context.Context) error { return database.Close() })

	// bubbletea turns SIGINT and SIGTERM into a quit. A closed terminal
	// sends SIGHUP instead, so kill the program on that and still tear down.
	app := ui.NewApp(store, database, log)
	p := tea.NewProgram(app, tea.WithAltScreen())
	stopHangup := lifecycle.OnHangup(func() {
		log.Info("terminal hung up")
		p.Kill()
	})
	_, runErr := p.Run()
	stopHangup()
	if errors.Is(runErr, tea.ErrInterrupted) || errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	if err := coordinator.ShutdownWithTimeout(); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	if runErr != nil {
		return fmt.Errorf("run application: %w", runErr)
	}
	return nil
}

func runServer(cfg config.Config, store *taskstore.Store, hooks *lifecycle.Hooks, database *db.DB, coordinator *lifecycle.Coordinator, log *logging.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(cfg.Server.Addr, store, log)

	// Stop taking requests before the store is drained. A stuck request may
	// use up the whole deadline; the snapshot is written regardless.
	coordinator.Register("http", server.Shutdown)
	coordinator.RegisterCritical("snapshot", hooks.BeforeTeardown)
	coordinator.RegisterCritical("database", func(context.Context) error { return database.Close() })
	coordinator.HandleSignals()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", map[string]interface{}{"addr": cfg.Server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error("server failed", map[string]interface{}{"error": err})
		shutdownErr := coordinator.ShutdownWithTimeout()
		return errors.Join(fmt.Errorf("serve: %w", err), shutdownErr)
	case <-coordinator.Done():
	}

	if err := coordinator.Err(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("stopped")
	return nil
}
