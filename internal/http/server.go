package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"payouts/internal/core"
	"payouts/internal/log"
	"payouts/internal/middleware/ratelimit"
	"payouts/internal/middleware/security"
	"payouts/internal/middleware/trace"
	appweb "payouts/web"
)

// Ledger is what the HTTP surface needs from *ledger.Ledger.
type Ledger interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
	Reset(ctx context.Context) error
	Dirty() bool
}

// Options tune the HTTP surface.
type Options struct {
	// ResetKey guards /reset; empty disables it.
	ResetKey           string
	ResetRatePerMinute int
	// PollInterval is how often the widget refreshes.
	PollInterval time.Duration
}

type Server struct {
	http.Server
	ledger    Ledger
	resetKey  string
	limiter   *ratelimit.Limiter
	templates *template.Template
	poll      time.Duration
	logger    *log.Logger
}

func NewServer(addr string, l Ledger, opts Options) *Server {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}

	s := &Server{
		ledger:    l,
		resetKey:  opts.ResetKey,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ResetRatePerMinute}),
		templates: template.Must(template.ParseFS(appweb.TemplatesFS, "templates/*.html")),
		poll:      opts.PollInterval,
		logger:    log.Default(log.ComponentHTTP),
	}

	ips := security.NewClientIPResolver()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /payouts", s.handlePayouts)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /reset", s.limiter.Middleware(ips.ExtractClientIP, s.handleRateLimited)(
		http.HandlerFunc(s.handleReset)))

	var handler http.Handler = mux
	handler = withCORS(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(log.Default(log.ComponentTrace), ips.ExtractClientIP).Middleware(handler)

	s.Addr = addr
	s.Handler = handler
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// withCORS opens every endpoint to any origin and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
