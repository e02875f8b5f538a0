package modules

import (
	"context"
	"strings"

	"github.com/riverqueue/river"

	"smartfarm.io/farm/internal/api/handlers"
	"smartfarm.io/farm/internal/api/middleware"
	"smartfarm.io/farm/internal/config"
	"smartfarm.io/farm/internal/service"
)

// JWTConfig derives the token settings from cfg. The router and the
// identity module must agree on it.
func JWTConfig(cfg *config.Config) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, key := range cfg.Security.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.SessionSecret),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.Session.Issuer,
		ExpiresIn:        cfg.Session.Lifetime,
	}
}

// IdentityModule wires credentials, profiles and linked accounts.
type IdentityModule struct {
	users *service.UserService
}

func NewIdentityModule(infra *Infrastructure) *IdentityModule {
	issuer := middleware.NewTokenIssuer(JWTConfig(infra.Config))
	return &IdentityModule{users: service.NewUserService(infra.Repo, issuer)}
}

func (m *IdentityModule) Name() string { return "identity" }

func (m *IdentityModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Users = m.users
}

func (m *IdentityModule) RegisterWorkers(_ *river.Workers) {}

func (m *IdentityModule) Shutdown(context.Context) error { return nil }
