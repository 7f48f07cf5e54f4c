// Package server assembles the hub's HTTP API: price and watchlist reads for
// the displays, device settings with the updated_at watermark, and the
// operator surface (credentials, refresh, metrics, system stats).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/assets"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/devices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/prices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/settings"
	"github.com/Tickertronix/Tickertronix-Open/internal/scheduler"
)

// SchedulerService is the scheduler surface the API needs.
type SchedulerService interface {
	Running() bool
	TriggerRefresh()
	Status() scheduler.Status
}

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Host    string
	Port    int
	DataDir string

	DB        *database.DB
	Scheduler SchedulerService

	Assets      *assets.Handler
	Prices      *prices.Handler
	Devices     *devices.Handler
	Credentials *settings.Handler
}

// Server is the hub HTTP server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	db         *database.DB
	scheduler  SchedulerService
	dataDir    string
	log        zerolog.Logger
}

// New creates the server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		db:        cfg.DB,
		scheduler: cfg.Scheduler,
		dataDir:   cfg.DataDir,
		log:       cfg.Log.With().Str("component", "server").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.loggingMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	router.Use(middleware.Compress(5))

	router.Get("/health", s.handleHealth)
	router.Get("/status", s.handleStatus)
	router.Post("/refresh", s.handleRefresh)

	router.Get("/prices", cfg.Prices.HandleList)
	router.Get("/prices/{class}", cfg.Prices.HandleListByClass)
	router.Get("/prices/{class}/{symbol}", cfg.Prices.HandleGetSymbol)

	router.Get("/assets", cfg.Assets.HandleList)
	router.Post("/assets", cfg.Assets.HandleAdd)
	router.Delete("/assets/{class}/{symbol}", cfg.Assets.HandleRemove)
	router.Put("/assets/{class}/{symbol}/enabled", cfg.Assets.HandleSetEnabled)

	router.Get("/devices", cfg.Devices.HandleList)
	router.Route("/device/{deviceID}", func(r chi.Router) {
		r.Get("/settings", cfg.Devices.HandleGetSettings)
		r.Post("/settings", cfg.Devices.HandleUpdateSettings)
		r.Post("/settings/touch", cfg.Devices.HandleTouch)
		r.Post("/heartbeat", cfg.Devices.HandleHeartbeat)
		r.Put("/enabled", cfg.Devices.HandleSetEnabled)
	})

	router.Put("/credentials/{provider}", cfg.Credentials.HandlePutCredential)
	router.Post("/credentials/alpaca/verify", cfg.Credentials.HandleVerifyCredential)

	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Get("/system/stats", s.handleSystemStats)

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Every display polls this; use the cheap probe, not the full
	// integrity check.
	dbStatus := "ok"
	status := "ok"
	code := http.StatusOK
	if err := s.db.QuickCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		dbStatus = "error"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	schedStatus := "stopped"
	if s.scheduler != nil && s.scheduler.Running() {
		schedStatus = "running"
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"database":  dbStatus,
		"scheduler": schedStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.scheduler.TriggerRefresh()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Refresh triggered",
	})
}

// handleSystemStats reports host resource usage. Individual probes fail
// independently; a probe error leaves its section null.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("CPU probe failed")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory"] = map[string]interface{}{
			"total":   vm.Total,
			"used":    vm.Used,
			"percent": vm.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Memory probe failed")
	}

	if usage, err := disk.Usage(s.dataDir); err == nil {
		stats["disk"] = map[string]interface{}{
			"total":   usage.Total,
			"used":    usage.Used,
			"percent": usage.UsedPercent,
		}
	} else {
		s.log.Warn().Err(err).Msg("Disk probe failed")
	}

	if uptime, err := host.Uptime(); err == nil {
		stats["uptime_seconds"] = uptime
	} else {
		s.log.Warn().Err(err).Msg("Uptime probe failed")
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
