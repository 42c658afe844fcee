package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/shipdesk-notify/internal/app"
	"github.com/nhle/shipdesk-notify/internal/credential"
	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/store"
	appsync "github.com/nhle/shipdesk-notify/internal/sync"
)

func runLogin(args []string, stdout io.Writer) error {
	var configPath, apiURL, userID, token, desktop string
	fs := newFlagSet("login", &configPath)
	fs.StringVar(&apiURL, "api-url", "", "backend base URL, e.g. https://api.example.com/api")
	fs.StringVarP(&userID, "user", "u", "", "user id to sign in as")
	fs.StringVarP(&token, "token", "t", "", "bearer token")
	fs.StringVar(&desktop, "desktop", "", "desktop notifications: granted, denied or default")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if apiURL == "" {
		apiURL = cfg.API.BaseURL
	}
	permission := cfg.Display.DesktopNotifications
	if desktop != "" {
		permission = model.DesktopPermission(desktop)
	}

	if userID == "" || token == "" {
		allow := permission == model.PermissionGranted
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("API URL").
					Value(&apiURL),
				huh.NewInput().
					Title("User ID").
					Value(&userID).
					Validate(required("User ID")),
				huh.NewInput().
					Title("Token").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(required("Token")),
				huh.NewConfirm().
					Title("Show desktop notifications?").
					Value(&allow),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
		permission = model.PermissionDenied
		if allow {
			permission = model.PermissionGranted
		}
	}

	token = credential.NormalizeToken(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	creds, err := credential.Open()
	if err != nil {
		return err
	}
	if err := creds.Set(cfg.Session.TokenKey, token); err != nil {
		return err
	}

	cfg.API.BaseURL = strings.TrimSpace(apiURL)
	cfg.Session.UserID = strings.TrimSpace(userID)
	cfg.Display.DesktopNotifications = permission
	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "signed in as %s\n", cfg.Session.UserID)
	return nil
}

func runLogout(args []string, stdout io.Writer) error {
	var configPath string
	fs := newFlagSet("logout", &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	creds, err := credential.Open()
	if err != nil {
		return err
	}
	if err := creds.Delete(cfg.Session.TokenKey); err != nil {
		return err
	}

	if cfg.Session.UserID != "" {
		if _, statErr := os.Stat(cfg.Store.Path); statErr == nil {
			cache, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			clearErr := cache.ClearUser(context.Background(), cfg.Session.UserID)
			closeErr := cache.Close()
			if err := errors.Join(clearErr, closeErr); err != nil {
				return err
			}
		}
	}

	cfg.Session.UserID = ""
	if err := model.SaveConfig(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "signed out")
	return nil
}

func runInbox(args []string, _ io.Writer) error {
	var configPath string
	fs := newFlagSet("inbox", &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logPath := filepath.Join(filepath.Dir(configPath), "shipdesk.log")
	sess, err := openSession(configPath, logPath)
	if err != nil {
		return err
	}
	defer sess.Close()

	root := app.New(sess.sync, sess.cfg.Session.UserID).WithDesktop(sess.notifier)
	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	// Keep the toggle across runs.
	if perm := sess.notifier.Permission(); perm != sess.cfg.Display.DesktopNotifications {
		sess.cfg.Display.DesktopNotifications = perm
		if err := model.SaveConfig(configPath, sess.cfg); err != nil {
			return err
		}
	}
	return nil
}

func runWatch(args []string, stdout io.Writer) error {
	var configPath string
	var all bool
	fs := newFlagSet("watch", &configPath)
	fs.BoolVar(&all, "all", false, "print the existing list before new arrivals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := openSession(configPath, "")
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.sync.Start(sess.cfg.Session.UserID); err != nil {
		return err
	}

	seen := make(map[string]bool)
	primed := false
	lastCount := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-sess.sync.Updates():
			if snap.State != appsync.StateLive {
				continue
			}
			// Newest first; print oldest unseen first.
			for i := len(snap.Notifications) - 1; i >= 0; i-- {
				n := snap.Notifications[i]
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				if primed || all {
					printNotification(stdout, n)
				}
			}
			primed = true
			if snap.UnreadCount != lastCount {
				lastCount = snap.UnreadCount
				fmt.Fprintf(stdout, "-- %d unread\n", lastCount)
			}
		}
	}
}

func runSend(args []string, stdout io.Writer) error {
	var configPath, title, message, to string
	fs := newFlagSet("send", &configPath)
	fs.StringVar(&title, "title", "", "notification title")
	fs.StringVarP(&message, "message", "m", "", "notification message")
	fs.StringVar(&to, "to", "", "recipient id; omit to broadcast to all users")
	if err := fs.Parse(args); err != nil {
		return err
	}

	draft := model.Draft{Title: title, Message: message, Audience: model.AudienceAll}
	if to != "" {
		draft.Audience = model.AudienceSpecific
		draft.RecipientID = to
	}
	if _, err := draft.Request(); err != nil {
		return err
	}

	sess, err := openSession(configPath, "")
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.sync.Start(sess.cfg.Session.UserID); err != nil {
		return err
	}
	if !sess.waitConnected(3 * time.Second) {
		fmt.Fprintln(stdout, "realtime socket unavailable, sending over REST only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := sess.sync.SendNotification(ctx, draft)
	if err != nil {
		return err
	}
	if res.Soft {
		fmt.Fprintln(stdout, "sent (backend did not deliver it live; relayed by this client)")
		return nil
	}
	fmt.Fprintln(stdout, "sent")
	return nil
}

func printNotification(w io.Writer, n model.Notification) {
	marker := " "
	if !n.IsRead {
		marker = "*"
	}
	scope := "all"
	if !n.IsBroadcast() {
		scope = "direct"
	}
	fmt.Fprintf(w, "%s %s [%s/%s] %s: %s\n",
		marker,
		n.CreatedAt.Local().Format("2006-01-02 15:04"),
		n.Category, scope,
		n.DisplayTitle(), n.Body,
	)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
