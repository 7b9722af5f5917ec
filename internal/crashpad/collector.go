package crashpad

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Collector is a local report-collection endpoint, the development stand-in
// for the hosted crash backend. The handler process serves it in --listen
// mode so uploads can be exercised end to end without network access.
type Collector struct {
	db     *Database
	logger *slog.Logger
}

// NewCollector creates a collector over an open database.
func NewCollector(db *Database, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{db: db, logger: logger}
}

// Router builds the collector's HTTP surface.
func (c *Collector) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-Crashguard-Report-ID"},
	}).Handler)

	r.Post("/api/reports", c.handleSubmit)
	r.Get("/api/reports", c.handleList)
	r.Get("/api/reports/{id}", c.handleGet)
	return r
}

func (c *Collector) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var report Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid report payload", http.StatusBadRequest)
		return
	}
	if report.ID == "" {
		http.Error(w, "report id required", http.StatusBadRequest)
		return
	}

	// Received reports are terminal on this side; nothing re-uploads them.
	report.Uploaded = true
	if err := c.db.InsertReport(r.Context(), report); err != nil {
		c.logger.Error("storing submitted report", "id", report.ID, "error", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	c.logger.Info("report received", "id", report.ID, "reason", report.Reason)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": report.ID})
}

func (c *Collector) handleList(w http.ResponseWriter, r *http.Request) {
	reports, err := c.db.ListReports(r.Context())
	if err != nil {
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reports)
}

func (c *Collector) handleGet(w http.ResponseWriter, r *http.Request) {
	report, err := c.db.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
