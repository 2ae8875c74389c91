package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/config"
	"github.com/ent0n29/aide/internal/conversation"
	"github.com/ent0n29/aide/internal/httpapi"
	"github.com/ent0n29/aide/internal/intent"
	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/prefs"
	"github.com/ent0n29/aide/internal/reminders"
	"github.com/ent0n29/aide/internal/services"
	"github.com/ent0n29/aide/internal/session"
	"github.com/ent0n29/aide/internal/store"
	"github.com/ent0n29/aide/internal/tasks"
	"github.com/ent0n29/aide/internal/voice"
)

type Options struct {
	Logger *zap.Logger
	Stdin  io.Reader
	Stdout io.Writer
}

type BuildResult struct {
	Config      config.Config
	Preferences prefs.Preferences
	Store       store.Store
	Log         *conversation.Log
	Tasks       *tasks.Manager
	Reminders   *reminders.Manager
	Poller      *reminders.Poller
	Dispatcher  *intent.Dispatcher
	Loop        *session.Loop
	API         *httpapi.Server
	Metrics     *observability.Metrics
	IODetail    string

	// Cleanup saves preferences and closes the store. Call it once, after the
	// loop has said goodbye.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	userPrefs, err := prefs.Load(cfg.PreferencesPath)
	if err != nil {
		logger.Warn("preferences unreadable, using defaults", zap.String("path", cfg.PreferencesPath), zap.Error(err))
	}

	st, err := store.NewStore(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	convLog := conversation.NewLog(st, cfg.HistoryWindow, logger.Named("conversation"), metrics)
	taskManager := tasks.NewManager(st, logger.Named("tasks"), metrics)
	reminderManager := reminders.NewManager(st, logger.Named("reminders"), metrics)

	ioSet, err := resolveIO(cfg, userPrefs, convLog.SessionID(), opts.Stdin, opts.Stdout, logger, metrics)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// The loop speaks notifications but is built last; bind it late.
	var loop *session.Loop
	notify := reminders.NotifierFunc(func(ctx context.Context, text string) error {
		if loop == nil {
			return voice.ErrNoListeners
		}
		return loop.Notify(ctx, text)
	})

	poller := reminders.NewPoller(reminderManager, notify, cfg.ReminderPollInterval, logger.Named("poller"), metrics)

	dispatcher := intent.NewDispatcher(intent.Deps{
		Knowledge:       services.NewWikipedia(cfg.WikipediaURL, cfg.ServiceTimeout),
		Weather:         services.NewOpenWeather(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.ServiceTimeout),
		News:            services.NewNewsAPI(cfg.NewsAPIKey, cfg.NewsAPIURL, cfg.ServiceTimeout),
		Calculator:      services.NewWolfram(cfg.WolframAppID, cfg.WolframURL, cfg.ServiceTimeout),
		Translator:      services.NewLibreTranslate(cfg.TranslateURL, cfg.TranslateAPIKey, cfg.ServiceTimeout),
		System:          services.NewHostMetrics(),
		Screenshot:      services.NewScreenshotter(cfg.ScreenshotDir, cfg.ScreenshotCmd),
		Browser:         services.NewBrowser(),
		Apps:            services.NewLauncher(logger.Named("apps")),
		Tasks:           taskManager,
		Reminders:       reminderManager,
		Learning:        convLog,
		DueCheck:        poller,
		Notifier:        notify,
		DefaultLocation: cfg.DefaultLocation,
		Logger:          logger.Named("intent"),
		Metrics:         metrics,
	})

	loop = session.NewLoop(session.Options{
		Source:        ioSet.source,
		Sink:          ioSet.sink,
		Dispatcher:    dispatcher,
		Log:           convLog,
		AssistantName: cfg.AssistantName,
		UserName:      userPrefs.UserName,
		WakeWord:      userPrefs.WakeWord,
		ListenTimeout: cfg.ListenTimeout,
		MaxSilence:    cfg.MaxSilence,
		Logger:        logger.Named("session"),
		Metrics:       metrics,
	})

	var api *httpapi.Server
	if cfg.HTTPAddr != "" {
		deps := httpapi.Deps{
			Store:       st,
			StoreDriver: storeDriver(cfg),
			Dispatcher:  dispatcher,
			Session:     loop,
			History:     convLog,
			Metrics:     metrics,
			Logger:      logger.Named("http"),
		}
		if ioSet.bridge != nil {
			deps.Bridge = ioSet.bridge
		}
		api = httpapi.New(deps)
	}

	cleanup := func() error {
		var errs []error
		if ioSet.cleanup != nil {
			if err := ioSet.cleanup(); err != nil {
				errs = append(errs, fmt.Errorf("close input: %w", err))
			}
		}
		if err := prefs.Save(cfg.PreferencesPath, userPrefs); err != nil {
			errs = append(errs, err)
		}
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:      cfg,
		Preferences: userPrefs,
		Store:       st,
		Log:         convLog,
		Tasks:       taskManager,
		Reminders:   reminderManager,
		Poller:      poller,
		Dispatcher:  dispatcher,
		Loop:        loop,
		API:         api,
		Metrics:     metrics,
		IODetail:    ioSet.detail,
		Cleanup:     cleanup,
	}, nil
}

func storeDriver(cfg config.Config) string {
	if cfg.StoreDriver != "" {
		return cfg.StoreDriver
	}
	if cfg.DatabaseURL != "" {
		return store.DriverPostgres
	}
	return store.DriverSQLite
}
