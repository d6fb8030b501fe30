package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/adapters/memory"
	"github.com/wikimesh/ssohub/internal/adapters/postgres"
	redisadapter "github.com/wikimesh/ssohub/internal/adapters/redis"
	"github.com/wikimesh/ssohub/internal/observability/statsd"
	"github.com/wikimesh/ssohub/internal/ports"
	"github.com/wikimesh/ssohub/internal/service"
)

// Services is the wired service container the HTTP layer runs on.
type Services struct {
	Classifier *service.DomainClassifier
	Autologin  *service.AutologinService
	Login      *service.CentralLoginService
	Metrics    *statsd.Client
}

// ServiceDeps carries shared infrastructure into service construction.
type ServiceDeps struct {
	Config      *config.AppConfig
	Pools       DirectoryPools
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires stores, classifier, and both handshake services. In dev
// mode the token and session stores are in-memory, so a single process with
// just postgres can run the whole handshake.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		tokens  ports.TokenStore
		central ports.CentralSessionStore
		local   ports.LocalSessionStore
	)
	if cfg.IsDev && deps.RedisClient == nil {
		logger.Info("dev mode: using in-memory token and session stores")
		tokens = memory.NewTokenStore()
		central = memory.NewCentralSessionStore()
		local = memory.NewLocalSessionStore()
	} else {
		tokens = redisadapter.NewTokenStore(deps.RedisClient)
		central = redisadapter.NewCentralSessionStore(deps.RedisClient)
		local = redisadapter.NewLocalSessionStore(deps.RedisClient)
	}

	directory := postgres.NewUserDirectory(deps.Pools.Replica, deps.Pools.Primary)
	classifier := service.NewDomainClassifier(cfg.SSO, cfg.HTTP.Scheme)

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init statsd: %w", err)
	}

	autologin := service.NewAutologinService(service.AutologinServiceOptions{
		Classifier: classifier,
		Tokens:     tokens,
		Central:    central,
		Local:      local,
		Directory:  directory,
		Config:     cfg.SSO,
		Logger:     logger,
	})
	login := service.NewCentralLoginService(service.CentralLoginServiceOptions{
		Classifier: classifier,
		Tokens:     tokens,
		Central:    central,
		Local:      local,
		Directory:  directory,
		Config:     cfg.SSO,
		Logger:     logger,
	})

	return &Services{
		Classifier: classifier,
		Autologin:  autologin,
		Login:      login,
		Metrics:    metrics,
	}, nil
}
