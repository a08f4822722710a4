// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/bitsim/node/app/services/node/handlers/v1/admingrp"
	"github.com/bitsim/node/app/services/node/handlers/v1/private"
	"github.com/bitsim/node/app/services/node/handlers/v1/public"
	"github.com/bitsim/node/app/services/node/handlers/v1/registrygrp"
	"github.com/bitsim/node/business/core/registry"
	"github.com/bitsim/node/business/web/auth"
	"github.com/bitsim/node/business/web/v1/mid"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/blockchain/worker"
	"github.com/bitsim/node/foundation/events"
	"github.com/bitsim/node/foundation/nameservice"
	"github.com/bitsim/node/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build    string
	Log      *zap.SugaredLogger
	State    *state.State
	Worker   *worker.Worker
	Registry *registry.Core
	Auth     *auth.Auth
	NS       *nameservice.NameService
	Evts     *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Build:  cfg.Build,
		Log:    cfg.Log,
		State:  cfg.State,
		Worker: cfg.Worker,
		NS:     cfg.NS,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/health", pbl.Health)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/mempool", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/mempool", pbl.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, version, "/chain/:index", pbl.Block)
	app.Handle(http.MethodGet, version, "/balances", pbl.Balances)
	app.Handle(http.MethodGet, version, "/balances/:address", pbl.Balances)

	reg := registrygrp.Handlers{
		Log:      cfg.Log,
		Registry: cfg.Registry,
		NS:       cfg.NS,
	}

	app.Handle(http.MethodPost, version, "/users/register", reg.Register)
	app.Handle(http.MethodPost, version, "/users/challenge", reg.Challenge)
	app.Handle(http.MethodPost, version, "/users/verify", reg.Verify)
	app.Handle(http.MethodGet, version, "/tokens", reg.Tokens)
	app.Handle(http.MethodPost, version, "/tokens", reg.CreateToken)

	adm := admingrp.Handlers{
		Log:      cfg.Log,
		Auth:     cfg.Auth,
		Registry: cfg.Registry,
	}
	authen := mid.Authenticate(cfg.Auth)

	app.Handle(http.MethodPost, version, "/admin/login", adm.Login)
	app.Handle(http.MethodGet, version, "/admin/stats", adm.Stats, authen)
	app.Handle(http.MethodGet, version, "/admin/verifications", adm.Verifications, authen)
	app.Handle(http.MethodPost, version, "/admin/verify-tx", adm.VerifyTx, authen)

	app.Handle(http.MethodGet, version, "/admin/children", adm.Principals(registry.KindChild), authen)
	app.Handle(http.MethodPost, version, "/admin/children", adm.UpsertPrincipal(registry.KindChild), authen)
	app.Handle(http.MethodPost, version, "/admin/children/:address/toggle", adm.TogglePrincipal(registry.KindChild), authen)
	app.Handle(http.MethodPost, version, "/admin/children/:address/sign", adm.SignAs(registry.KindChild), authen)

	app.Handle(http.MethodGet, version, "/admin/miners", adm.Principals(registry.KindMiner), authen)
	app.Handle(http.MethodPost, version, "/admin/miners", adm.UpsertPrincipal(registry.KindMiner), authen)
	app.Handle(http.MethodPost, version, "/admin/miners/:address/toggle", adm.TogglePrincipal(registry.KindMiner), authen)
	app.Handle(http.MethodPost, version, "/admin/miners/:address/sign", adm.SignAs(registry.KindMiner), authen)
	app.Handle(http.MethodPost, version, "/admin/miners/:address/verify", adm.VerifyAs(registry.KindMiner), authen)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/export", prv.Export)
	app.Handle(http.MethodPost, version, "/node/import", prv.Import)
	app.Handle(http.MethodPost, version, "/node/reset", prv.Reset)
}
