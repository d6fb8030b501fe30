package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wikimesh/ssohub/internal/ports"
	"github.com/wikimesh/ssohub/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Autologin   *service.AutologinService
	Login       *service.CentralLoginService
	Metrics     ports.MetricsSink
	IconPath    string
	Secure      bool
	RememberTTL time.Duration
	Logger      *slog.Logger
}

// NewRouter creates and configures the handshake HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	h := &HandshakeHandlers{
		Autologin:   services.Autologin,
		Login:       services.Login,
		Shaper:      &ResponseShaper{IconPath: services.IconPath},
		Metrics:     services.Metrics,
		Secure:      services.Secure,
		RememberTTL: services.RememberTTL,
		Logger:      services.Logger,
	}

	mux.HandleFunc("GET /sso/autologin/{step}", h.AutologinStep)
	mux.HandleFunc("GET /sso/login/start", h.LoginStart)
	mux.HandleFunc("GET /sso/login/complete", h.LoginComplete)
	mux.HandleFunc("POST /sso/login/begin", h.BeginLogin)
	mux.HandleFunc("GET /healthz", Health)
	mux.HandleFunc("HEAD /healthz", Health)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Recover(logger)(Logging(logger)(mux))
}
