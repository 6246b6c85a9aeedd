package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/gateway"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	"github.com/noah-isme/psy-schedule-api/pkg/config"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/logger"
)

type rootOptions struct {
	baseURL string
	token   string
	timeout time.Duration
	verbose bool
}

// app is one CLI invocation's view of the scheduling core.
type app struct {
	navigator *scheduling.Navigator
	store     *scheduling.RangeStore
	workflow  *scheduling.Workflow
	slots     []string
	logger    *zap.Logger
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(opts.token)
	if token == "" {
		token = strings.TrimSpace(cfg.Gateway.Token)
	}
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrAuthMissing, "pass --token or set GATEWAY_TOKEN")
	}

	baseURL := cfg.Gateway.BaseURL
	if opts.baseURL != "" {
		baseURL = strings.TrimRight(opts.baseURL, "/")
	}
	timeout := cfg.Gateway.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	logCfg := config.LogConfig{Level: "warn", Format: "console"}
	if opts.verbose {
		logCfg.Level = "debug"
	}
	logr, err := logger.New(config.EnvDevelopment, logCfg)
	if err != nil {
		return nil, err
	}

	client := gateway.NewClient(baseURL, timeout, gateway.StaticCredentials(token), gateway.WithLogger(logr))
	store := scheduling.NewRangeStore(client, scheduling.WithStoreLogger(logr))
	return &app{
		navigator: scheduling.NewNavigator(models.ViewMode(cfg.Calendar.DefaultView), scheduling.WithLocation(cfg.Calendar.Location())),
		store:     store,
		workflow:  scheduling.NewWorkflow(client, store, logr),
		slots:     scheduling.GenerateTimeSlots(cfg.Calendar.StartHour, cfg.Calendar.EndHour),
		logger:    logr,
	}, nil
}

// load positions the navigator and fetches the visible range.
func (a *app) load(ctx context.Context, mode models.ViewMode, date string) (scheduling.Grid, error) {
	if err := a.navigator.SetViewMode(mode); err != nil {
		return scheduling.Grid{}, err
	}
	if date != "" {
		d, err := models.ParseDate(date)
		if err != nil {
			return scheduling.Grid{}, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		a.navigator.GoTo(d)
	}
	rng := a.navigator.Range()
	if err := a.store.Load(ctx, rng); err != nil {
		return scheduling.Grid{}, err
	}
	_, appointments, _ := a.store.Snapshot()
	return scheduling.BuildGrid(appointments, rng, a.slots), nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
