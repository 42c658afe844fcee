package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/shipdesk-notify/internal/backend"
	"github.com/nhle/shipdesk-notify/internal/credential"
	"github.com/nhle/shipdesk-notify/internal/desktop"
	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/realtime"
	"github.com/nhle/shipdesk-notify/internal/store"
	appsync "github.com/nhle/shipdesk-notify/internal/sync"
)

// newLogger builds a zap logger from the log section. An empty output
// path logs to stderr.
func newLogger(cfg model.LogConfig, output string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		zc.Level = level
	}

	if output != "" {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		zc.OutputPaths = []string{output}
		zc.ErrorOutputPaths = []string{output}
	}

	return zc.Build()
}

// session holds every component of a signed-in run.
type session struct {
	cfg       *model.AppConfig
	logger    *zap.Logger
	cache     *store.SQLiteStore
	transport *realtime.Client
	notifier  *desktop.Notifier
	sync      *appsync.Synchronizer
}

// openSession loads config and credentials and wires the synchronizer.
// logOutput redirects logs away from the terminal for the TUI.
func openSession(configPath, logOutput string) (*session, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Session.UserID == "" {
		return nil, fmt.Errorf("not signed in, run 'shipdesk login'")
	}

	logger, err := newLogger(cfg.Log, logOutput)
	if err != nil {
		return nil, err
	}

	creds, err := credential.Open()
	if err != nil {
		return nil, err
	}
	tokens := credential.NewTokenSource(creds, cfg.Session.TokenKey)
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("no saved token, run 'shipdesk login': %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	cache, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	api := backend.NewClient(cfg.API.BaseURL, tokens, logger.Named("backend"),
		backend.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		backend.WithMaxRetries(cfg.API.MaxRetries),
	)
	transport := realtime.NewClient(cfg.RealtimeURL(), tokens, logger.Named("realtime"),
		realtime.WithBackoff(
			time.Duration(cfg.Realtime.MinBackoffMS)*time.Millisecond,
			time.Duration(cfg.Realtime.MaxBackoffMS)*time.Millisecond,
		),
		realtime.WithDialer(&websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: time.Duration(cfg.Realtime.HandshakeTimeoutSec) * time.Second,
		}),
	)
	notifier := desktop.NewNotifier(cfg.Display.DesktopNotifications, logger.Named("desktop"))

	s := appsync.New(api, transport, logger.Named("sync"),
		appsync.WithCache(cache),
		appsync.WithNotifier(notifier),
		appsync.WithRefreshInterval(time.Duration(cfg.Sync.RefreshIntervalSec)*time.Second),
	)

	return &session{
		cfg:       cfg,
		logger:    logger,
		cache:     cache,
		transport: transport,
		notifier:  notifier,
		sync:      s,
	}, nil
}

// Close stops syncing and releases resources.
func (s *session) Close() {
	s.sync.Stop()
	s.transport.Disconnect()
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("closing cache failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// waitConnected polls until the socket is up or timeout elapses.
func (s *session) waitConnected(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.transport.IsConnected() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return s.transport.IsConnected()
}
