package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/internal/report"
	"github.com/sells-group/leadreport/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		o, st, err := initOrchestrator(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(o, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv, o)
	},
}

// runServer serves until ctx is cancelled, then drains before returning so
// in-flight report pipelines land their writes ahead of the store close.
func runServer(ctx context.Context, srv *http.Server, o *report.Orchestrator) error {
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}

	<-shutdownDone
	o.Wait()

	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles the HTTP API. Report submission returns immediately
// with an id; clients poll the status endpoint until the report reaches a
// terminal state.
func buildRouter(o *report.Orchestrator, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/reports", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			handleSubmit(w, req, o)
		})
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			handleList(w, req, st)
		})
		r.Get("/{id}/status", func(w http.ResponseWriter, req *http.Request) {
			handleStatus(w, req, o)
		})
	})

	return r
}

func handleSubmit(w http.ResponseWriter, req *http.Request, o *report.Orchestrator) {
	var sub report.SubmitRequest
	if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	id, err := o.Submit(req.Context(), sub)
	if err != nil {
		var ve *report.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   ve.Error(),
			})
			return
		}
		zap.L().Error("submit failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":  true,
		"reportId": id,
		"status":   model.StatusProcessing,
	})
}

func handleStatus(w http.ResponseWriter, req *http.Request, o *report.Orchestrator) {
	id := chi.URLParam(req, "id")

	res, err := o.GetStatus(req.Context(), id)
	if err != nil {
		var nf *report.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   nf.Error(),
			})
			return
		}
		zap.L().Error("status lookup failed", zap.String("report_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func handleList(w http.ResponseWriter, req *http.Request, st store.Store) {
	q := req.URL.Query()

	filter := store.ReportFilter{
		Status: model.ReportStatus(q.Get("status")),
		Email:  q.Get("email"),
		Limit:  50,
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	reports, err := st.ListReports(req.Context(), filter)
	if err != nil {
		zap.L().Error("list reports failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reports": reports,
		"count":   len(reports),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
