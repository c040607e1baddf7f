// Package httpx exposes the account API over HTTP.
package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
)

const (
	healthCheckTimeout = 2 * time.Second
	maxJSONBody        = 1 << 20
	multipartOverhead  = 1 << 20
	pictureField       = "profilePic"
)

// Gate admits callers presenting HTTP Basic credentials.
type Gate interface {
	Admit(ctx context.Context, email, password string, requireVerified bool) (*models.Account, error)
}

type AccountManager interface {
	Create(ctx context.Context, in services.CreateAccountInput) (*models.Account, error)
	Update(ctx context.Context, account *models.Account, in services.UpdateAccountInput) error
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Account, error)
}

type PictureManager interface {
	Upload(ctx context.Context, account *models.Account, in services.UploadInput) (*models.Attachment, error)
	Get(ctx context.Context, account *models.Account) (*models.Attachment, error)
	Delete(ctx context.Context, account *models.Account) error
}

// Deps bundles what the router needs. Logger and Metrics may be nil.
type Deps struct {
	Logger        logging.Logger
	Metrics       metrics.Recorder
	Gate          Gate
	Accounts      AccountManager
	Verifier      Verifier
	Pictures      PictureManager
	DBHealth      func(context.Context) error
	MaxUploadSize int64
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	logger        logging.Logger
	metrics       metrics.Recorder
	gate          Gate
	accounts      AccountManager
	verifier      Verifier
	pictures      PictureManager
	dbHealth      func(context.Context) error
	maxUploadSize int64
}

// NewRouter assembles routes with dependencies.
func NewRouter(d Deps) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		logger:        d.Logger,
		metrics:       d.Metrics,
		gate:          d.Gate,
		accounts:      d.Accounts,
		verifier:      d.Verifier,
		pictures:      d.Pictures,
		dbHealth:      d.DBHealth,
		maxUploadSize: d.MaxUploadSize,
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	r.logger = r.logger.With("module", "http")
	if r.metrics == nil {
		r.metrics = metrics.Nop{}
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/healthz/", r.audit("/healthz/*", r.handleHealthz))
	r.mux.HandleFunc("/v1/user", r.audit("/v1/user", r.handleUser))
	r.mux.HandleFunc("/v1/verify", r.audit("/v1/verify", r.handleVerify))
	r.mux.HandleFunc("/v1/user/self", r.audit("/v1/user/self", r.handleSelf))
	r.mux.HandleFunc("/v1/user/self/pic", r.audit("/v1/user/self/pic", r.handlePicture))
	r.mux.HandleFunc("/", r.audit("unmatched", func(w http.ResponseWriter, req *http.Request) {
		r.notFound(w)
	}))
}

// audit sets the cache policy, then records one access log line and one
// metrics sample per request.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.metrics.ObserveRequest(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if recorder.accountID != "" {
			fields = append(fields, "account_id", recorder.accountID)
		}

		switch {
		case status >= 500:
			r.logger.Error(req.Context(), "http request", fields...)
		case status >= 400:
			r.logger.Warn(req.Context(), "http request", fields...)
		default:
			r.logger.Info(req.Context(), "http request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	bytes     int
	accountID string
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) setAccount(id string) {
	sr.accountID = id
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
