package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/securelink/internal/fingerprint"
	"github.com/Dan9191/securelink/internal/integrations/sar"
	"github.com/Dan9191/securelink/internal/middleware"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/Dan9191/securelink/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	defaultRingLimit = 5
	maxRingLimit     = 100
	maxBodyBytes     = 1 << 20
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
	now func() time.Time
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log, now: time.Now}
}

// Router registers every route. Ingestion goes through auth.
func (h *Handler) Router(auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/metrics", h.Metrics).Methods("GET")
	r.HandleFunc("/rings", h.Rings).Methods("GET")
	r.HandleFunc("/rings/active", h.ActiveRings).Methods("GET")
	r.HandleFunc("/rings/report.xml", h.RingReport).Methods("GET")
	r.HandleFunc("/rings/archive", h.ArchivedRings).Methods("GET")
	r.HandleFunc("/merchants", h.Merchants).Methods("GET")
	r.HandleFunc("/fingerprints", h.GenerateFingerprint).Methods("POST")
	r.HandleFunc("/fingerprints/compare", h.CompareFingerprints).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(auth)
	authRouter.HandleFunc("/transactions", h.IngestTransaction).Methods("POST")
	return r
}

type ingestResponse struct {
	TransactionID string            `json:"transaction_id"`
	Fingerprint   string            `json:"fingerprint"`
	RingCreated   bool              `json:"ring_created"`
	Ring          *models.FraudRing `json:"ring"`
}

// IngestTransaction handles transaction submission from a bank feed
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&tx); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if tx.Fingerprint == "" && tx.Merchant != "" && tx.Card != "" {
		tx.Fingerprint = fingerprint.ForTransaction(tx.Amount, tx.Timestamp, tx.Merchant, tx.Card).Fingerprint
	}

	det, err := h.svc.Ingest(r.Context(), tx)
	if errors.Is(err, service.ErrInvalidTransaction) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Errorf("Failed to ingest transaction %s: %v", tx.ID, err)
		http.Error(w, "Failed to ingest transaction", http.StatusInternalServerError)
		return
	}

	feed, _ := middleware.Subject(r.Context())
	h.log.Debugf("Transaction %s accepted from feed %s", tx.ID, feed)

	writeJSON(w, http.StatusAccepted, ingestResponse{
		TransactionID: tx.ID,
		Fingerprint:   tx.Fingerprint,
		RingCreated:   det.Created,
		Ring:          det.Snapshot,
	})
}

// Rings returns the most recent rings
func (h *Handler) Rings(w http.ResponseWriter, r *http.Request) {
	limit, ok := ringLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.RecentRings(limit))
}

// ActiveRings returns how many rings are still inside the detection window
func (h *Handler) ActiveRings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"active_rings": h.svc.ActiveRingCount()})
}

// RingReport renders the recent rings as a suspicious activity report
func (h *Handler) RingReport(w http.ResponseWriter, r *http.Request) {
	limit, ok := ringLimit(w, r)
	if !ok {
		return
	}
	out, err := sar.ReportXML(h.svc.RecentRings(limit), h.now())
	if err != nil {
		h.log.Errorf("Failed to render ring report: %v", err)
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(out)
}

// ArchivedRings lists rings from the persistent archive
func (h *Handler) ArchivedRings(w http.ResponseWriter, r *http.Request) {
	rings, err := h.svc.ArchivedRings(r.Context())
	if errors.Is(err, service.ErrArchiveDisabled) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Errorf("Failed to list archived rings: %v", err)
		http.Error(w, "Failed to list archived rings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rings)
}

// Merchants returns the merchant risk ledger
func (h *Handler) Merchants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var profiles []models.MerchantProfile
	switch {
	case q.Get("risk") == "high":
		profiles = h.svc.HighRiskMerchants()
	case q.Get("risk") != "":
		http.Error(w, "Unsupported risk filter", http.StatusBadRequest)
		return
	case q.Get("order") == "trust":
		profiles = h.svc.MerchantsByTrust()
	case q.Get("order") != "" && q.Get("order") != "name":
		http.Error(w, "Unsupported order", http.StatusBadRequest)
		return
	default:
		profiles = h.svc.Merchants()
	}
	if profiles == nil {
		profiles = []models.MerchantProfile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Metrics returns the running counters
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Metrics())
}

type fingerprintRequest struct {
	Data      string `json:"data"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Merchant  string `json:"merchant"`
	Card      string `json:"card"`
}

// GenerateFingerprint fingerprints raw data or a transaction tuple
func (h *Handler) GenerateFingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var res fingerprint.Result
	switch {
	case req.Data != "":
		res = h.svc.EncodeFingerprint(req.Data)
	case req.Merchant != "" && req.Card != "":
		res = h.svc.Fingerprint(req.Amount, req.Timestamp, req.Merchant, req.Card)
	default:
		http.Error(w, "Either data or merchant and card are required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompareFingerprints compares the fingerprints given as a and b
func (h *Handler) CompareFingerprints(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		http.Error(w, "Both a and b are required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.CompareFingerprints(a, b))
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ringLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRingLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return min(limit, maxRingLimit), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
