package service

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/famarks/logscope/internal/config"
	"github.com/famarks/logscope/pkg/report"
)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logscope_jobs_submitted_total",
		Help: "Total number of report jobs submitted.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logscope_jobs_failed_total",
		Help: "Total number of report job submissions that failed to enqueue.",
	})
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the HTTP/WebSocket API: submit/query reports,
// stream live progress, and expose Prometheus metrics.
func NewRouter(workers *Workers, store *report.Store) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/reports", submitReportHandler(workers)).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}", getReportHandler(store)).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}/ws", streamReportHandler(workers)).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(workers)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// submitRequest is the wire shape of a report submission: the fields
// every job needs, plus a free-form Options bag decoded through
// config.DecodeJobOptions the way worker.rs interprets per-job config
// extras.
type submitRequest struct {
	ReportID string                 `json:"report_id"`
	Target   string                 `json:"target"`
	Baseline string                 `json:"baseline"`
	Options  map[string]interface{} `json:"options"`
}

func submitReportHandler(workers *Workers) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body submitRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.ReportID == "" || body.Target == "" {
			http.Error(w, "report_id and target are required", http.StatusBadRequest)
			return
		}

		opts, err := config.DecodeJobOptions(body.Options)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		job := Job{
			ReportID:     body.ReportID,
			Target:       body.Target,
			Baseline:     body.Baseline,
			IsJSON:       opts.IsJSON,
			IsJobOutput:  opts.IsJobOutput,
			MessageField: opts.MessageField,
			ExcludeGlobs: opts.ExcludeGlobs,
		}
		if err := workers.Submit(job); err != nil {
			jobsFailed.Inc()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jobsSubmitted.Inc()

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"report_id": job.ReportID})
	}
}

func getReportHandler(store *report.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		r, ok, err := store.Get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(r)
	}
}

func statsHandler(workers *Workers) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(workers.Snapshot())
	}
}

func streamReportHandler(workers *Workers) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		monitor := workers.MonitorFor(id)
		ch := monitor.Subscribe()
		defer monitor.Unsubscribe(ch)

		for ev := range ch {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Status == StatusCompleted || ev.Status == StatusFailed {
				return
			}
		}
	}
}
