// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcgruenwald/platzbuch/internal/api"
	"github.com/tcgruenwald/platzbuch/internal/api/admin"
	bookingsapi "github.com/tcgruenwald/platzbuch/internal/api/bookings"
	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/clubtime"
	"github.com/tcgruenwald/platzbuch/internal/config"
	"github.com/tcgruenwald/platzbuch/internal/db"
	"github.com/tcgruenwald/platzbuch/internal/email"
	"github.com/tcgruenwald/platzbuch/internal/engine"
	"github.com/tcgruenwald/platzbuch/internal/members"
	"github.com/tcgruenwald/platzbuch/internal/metrics"
	"github.com/tcgruenwald/platzbuch/internal/ratelimit"
	"github.com/tcgruenwald/platzbuch/internal/rules"
	"github.com/tcgruenwald/platzbuch/internal/scheduler"
	"github.com/tcgruenwald/platzbuch/internal/series"
	"github.com/tcgruenwald/platzbuch/internal/sweeper"
)

// app holds the wired application components.
type app struct {
	database *db.DB
	limiter  *ratelimit.Limiter
}

func (a *app) Close() {
	a.limiter.Close()
	if err := a.database.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cal, err := clubtime.NewCalendar(cfg.Club.Timezone)
	if err != nil {
		database.Close()
		return nil, err
	}

	bookingStore := booking.NewStore(database)
	memberStore := members.NewStore(database)
	ruleStore := rules.NewStore(database)
	generator := series.NewGenerator(database, bookingStore, cal, cfg.Club.Courts, cfg.Club.FirstHour, cfg.Club.LastHour)
	eng := engine.New(memberStore, bookingStore, cal, clubtime.RealClock(),
		cfg.Club.Courts, cfg.Club.FirstHour, cfg.Club.LastHour)
	limiter := ratelimit.New(ratelimit.DefaultConfig())

	var sender email.Sender
	if cfg.Email.Enabled {
		ses, err := email.NewSESClient(cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			limiter.Close()
			database.Close()
			return nil, fmt.Errorf("init ses client: %w", err)
		}
		sender = ses
	}

	bookingsapi.InitHandlers(bookingsapi.Deps{
		Bookings:   bookingStore,
		Members:    memberStore,
		Rules:      ruleStore,
		Engine:     eng,
		Limiter:    limiter,
		Sender:     sender,
		TrustProxy: cfg.App.TrustProxy,
	})
	admin.InitHandlers(admin.Deps{
		Bookings: bookingStore,
		Members:  memberStore,
		Rules:    ruleStore,
		Series:   generator,
	})

	if err := scheduler.Init(); err != nil {
		limiter.Close()
		database.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	sweep := sweeper.New(bookingStore, ruleStore, memberStore, cal, clubtime.RealClock(), sender)
	if err := sweeper.RegisterJob(sweep, cfg.Sweeper.Cron); err != nil {
		limiter.Close()
		database.Close()
		return nil, err
	}

	return &app{database: database, limiter: limiter}, nil
}

func newServer(cfg *config.Config, _ *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", metrics.Handler())

	// Member booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookingsapi.HandleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", bookingsapi.HandleDayGrid)
	mux.HandleFunc("POST /api/v1/bookings/{id}/join", bookingsapi.HandleJoinBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookingsapi.HandleCancelBooking)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/comment", bookingsapi.HandleUpdateComment)
	mux.HandleFunc("POST /api/v1/bookings/{id}/info", bookingsapi.HandleBookingInfo)

	// Admin routes
	mux.HandleFunc("GET /api/v1/admin/rules", admin.HandleListRules)
	mux.HandleFunc("PUT /api/v1/admin/rules/{key}", admin.HandleUpdateRule)
	mux.HandleFunc("GET /api/v1/admin/members", admin.HandleListMembers)
	mux.HandleFunc("POST /api/v1/admin/members", admin.HandleCreateMember)
	mux.HandleFunc("DELETE /api/v1/admin/members/{id}", admin.HandleDeleteMember)
	mux.HandleFunc("POST /api/v1/admin/series/preview", admin.HandlePreviewSeries)
	mux.HandleFunc("POST /api/v1/admin/series", admin.HandleCreateSeries)
	mux.HandleFunc("GET /api/v1/admin/series", admin.HandleListSeries)
	mux.HandleFunc("PUT /api/v1/admin/series/{id}", admin.HandleReplaceSeries)
	mux.HandleFunc("DELETE /api/v1/admin/series/{id}", admin.HandleDeleteSeries)
	mux.HandleFunc("DELETE /api/v1/admin/bookings/{id}", admin.HandleDeleteBooking)
}
