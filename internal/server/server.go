package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	requestIDHeader     = "X-Request-ID"
)

// Analyzer is satisfied by *core.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, req entity.AnalysisRequest) (entity.Analysis, error)
}

// Handler serves the analysis API.
type Handler struct {
	analyzer     Analyzer
	logger       *slog.Logger
	maxBodyBytes int64
	timeout      time.Duration
}

type Option func(*Handler)

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithRequestTimeout bounds a single analysis. Zero means no bound beyond the client's.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

func New(analyzer Analyzer, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{analyzer: analyzer, logger: logger, maxBodyBytes: DefaultMaxBodyBytes}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes returns the mux with request-id and access-log middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/v1/analyze", h.Analyze)
	mux.HandleFunc("/analyze", h.Analyze)
	return h.withRequestID(mux)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, r, common.NewAppError("METHOD_NOT_ALLOWED", "GET only", common.ErrMethodNotAllowed))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, r, common.NewAppError("METHOD_NOT_ALLOWED", "POST only", common.ErrMethodNotAllowed))
		return
	}

	req, err := h.decode(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	ctx = common.WithCarID(ctx, req.CarID.String())

	an, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyzeResponse(an))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (entity.AnalysisRequest, error) {
	var req entity.AnalysisRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, common.NewAppError("BODY_TOO_LARGE",
				fmt.Sprintf("request body exceeds %d bytes", h.maxBodyBytes), common.ErrTooLarge)
		}
		return req, common.NewAppError("INVALID_JSON", "invalid json: "+err.Error(), common.ErrInvalidInput)
	}
	if req.Images == nil {
		req.Images = []string{}
	}
	return req, nil
}

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		log := h.logger.With("request_id", id)
		ctx := common.WithLogger(common.WithRequestID(r.Context(), id), log)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	log := common.LoggerFromContext(r.Context(), h.logger)
	if code >= http.StatusInternalServerError {
		log.Error("http.error", "status", code, "error", err)
	} else {
		log.Debug("http.reject", "status", code, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: common.PublicMessage(err)})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
