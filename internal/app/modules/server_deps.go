package modules

import (
	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/api/middleware"
	"autohaus.io/cms/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{Checks: infra.Checks}
	if infra.Pools != nil {
		deps.PoolStats = infra.Pools.Metrics
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// NewJWTConfig derives token verification settings.
func NewJWTConfig(cfg *config.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.JWTSecret),
		Issuer:     middleware.Issuer,
		ExpiresIn:  cfg.Security.TokenLifetime,
	}
}
