package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/example/calhub/internal/avail"
	"github.com/example/calhub/internal/config"
	"github.com/example/calhub/internal/coord"
	httpserver "github.com/example/calhub/internal/http"
	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
	"github.com/example/calhub/internal/source/gcal"
	"github.com/example/calhub/internal/source/localcal"
)

func main() {
	log.Println("Starting CalHub server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := coord.Options{
		Scoring: avail.Scoring{
			DeepWorkDays:     cfg.DeepWorkDays,
			MeetingHeavyDays: cfg.MeetingHeavyDays,
		},
		WorkingHours: model.WorkingHours{
			Start: cfg.WorkingHours.Start,
			End:   cfg.WorkingHours.End,
		},
	}

	// Sources register in configured order; that order decides which copy
	// of a duplicated event survives and where writes land first.
	for _, id := range cfg.EnabledSources {
		switch id {
		case "os":
			opts.Sources = append(opts.Sources, localcal.New(cfg.ICSDir))
			log.Printf("[INFO] os source enabled, reading %s", cfg.ICSDir)
		case "cloud":
			oc := oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{calendar.CalendarScope},
			}
			ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.Google.RefreshToken})
			adapter, err := gcal.New(ctx, ts, cfg.Google.CalendarID)
			if err != nil {
				log.Fatalf("failed to initialize cloud source: %v", err)
			}
			opts.Sources = append(opts.Sources, adapter)
			opts.FreeBusy = adapter
			opts.Mutable = adapter
			log.Printf("[INFO] cloud source enabled, calendar %s", cfg.Google.CalendarID)
		}
	}
	if len(opts.Sources) == 0 {
		log.Fatalf("no sources enabled: %v", source.ErrNoSources)
	}

	engine := coord.New(opts)
	r := httpserver.NewRouter(cfg, engine)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
