// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountsfeature "github.com/dalemusser/blockhub/internal/app/features/accounts"
	collabfeature "github.com/dalemusser/blockhub/internal/app/features/collab"
	healthfeature "github.com/dalemusser/blockhub/internal/app/features/health"
	organizationsfeature "github.com/dalemusser/blockhub/internal/app/features/organizations"
	projectsfeature "github.com/dalemusser/blockhub/internal/app/features/projects"
	"github.com/dalemusser/blockhub/internal/app/realtime/hub"
	"github.com/dalemusser/blockhub/internal/app/realtime/presence"
	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. BlockHub mounts the account,
// organization, project, and realtime collaboration APIs plus the
// health endpoint. Feature routers apply their own session middleware.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	accountsHandler := accountsfeature.NewHandler(userstore.New(deps.MongoDatabase), logger)
	r.Mount("/accounts", accountsfeature.Routes(accountsHandler))

	orgHandler := organizationsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/orgs", organizationsfeature.Routes(orgHandler))

	projectHandler := projectsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/projects", projectsfeature.Routes(projectHandler))

	// One hub and one presence registry per process; every session
	// shares them.
	collabHandler := collabfeature.NewHandler(
		deps.MongoDatabase,
		userstore.New(deps.MongoDatabase),
		hub.New(),
		presence.NewRegistry(),
		logger,
	)
	collabHandler.AutosaveInterval = appCfg.AutosaveInterval
	collabHandler.PingInterval = appCfg.PingInterval
	collabHandler.PingTimeout = appCfg.PingTimeout
	r.Mount("/collab", collabfeature.Routes(collabHandler))

	return r, nil
}
