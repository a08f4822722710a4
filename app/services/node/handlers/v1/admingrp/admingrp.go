// Package admingrp maintains the group of handlers for admin access.
package admingrp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bitsim/node/business/core/registry"
	"github.com/bitsim/node/business/web/auth"
	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of admin endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Auth     *auth.Auth
	Registry *registry.Core
}

// Login exchanges the admin credentials for a bearer token.
func (h Handlers) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	token, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		return errs.NewTrusted(errors.New("invalid credentials"), http.StatusUnauthorized)
	}

	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Stats returns the registry counts.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st, err := h.Registry.Stats()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Verifications returns the most recent verification records.
func (h Handlers) Verifications(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.NewTrustedf(http.StatusBadRequest, "invalid limit %q", v)
		}
		limit = n
	}

	vers, err := h.Registry.Verifications(limit)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, vers, http.StatusOK)
}

// VerifyTx checks a transaction's signature and records the outcome.
func (h Handlers) VerifyTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	ver, err := h.Registry.VerifyTx(tx, auth.GetAdmin(ctx))
	if err != nil {
		if errors.Is(err, database.ErrInvalidAmount) || errors.Is(err, database.ErrInvalidTx) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	return web.Respond(ctx, w, ver, http.StatusOK)
}

// =============================================================================

// Principals returns the handler listing the principals of the kind.
func (h Handlers) Principals(kind registry.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prns, err := h.Registry.Principals(kind)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, prns, http.StatusOK)
	}
}

// UpsertPrincipal returns the handler adding or replacing a principal.
func (h Handlers) UpsertPrincipal(kind registry.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var np registry.NewPrincipal
		if err := web.Decode(r, &np); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		prn, err := h.Registry.UpsertPrincipal(kind, np)
		if err != nil {
			return toTrusted(err)
		}

		h.Log.Infow("upsert principal", "traceid", web.GetTraceID(ctx), "kind", kind, "address", prn.Address, "admin", auth.GetAdmin(ctx))

		return web.Respond(ctx, w, prn, http.StatusOK)
	}
}

// TogglePrincipal returns the handler enabling or disabling a principal.
func (h Handlers) TogglePrincipal(kind registry.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		prn, err := h.Registry.TogglePrincipal(kind, web.Param(r, "address"), req.Enabled)
		if err != nil {
			return toTrusted(err)
		}

		return web.Respond(ctx, w, prn, http.StatusOK)
	}
}

// SignAs returns the handler signing a payload on behalf of a principal.
func (h Handlers) SignAs(kind registry.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Secret  string          `json:"secret"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		if req.Secret == "" || len(req.Payload) == 0 {
			return errs.NewTrusted(errors.New("secret and payload required"), http.StatusBadRequest)
		}

		sig, err := h.Registry.SignAs(kind, web.Param(r, "address"), req.Secret, req.Payload)
		if err != nil {
			return toTrusted(err)
		}

		resp := struct {
			Sig string `json:"sig"`
		}{
			Sig: sig,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// VerifyAs returns the handler checking a signature made for a principal.
func (h Handlers) VerifyAs(kind registry.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req struct {
			Payload   json.RawMessage `json:"payload"`
			Signature string          `json:"signature"`
		}
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}

		if req.Signature == "" || len(req.Payload) == 0 {
			return errs.NewTrusted(errors.New("payload and signature required"), http.StatusBadRequest)
		}

		ver, err := h.Registry.VerifyAs(kind, web.Param(r, "address"), req.Payload, req.Signature)
		if err != nil {
			return toTrusted(err)
		}

		return web.Respond(ctx, w, ver, http.StatusOK)
	}
}

// toTrusted maps the registry errors a client can act on to a status.
func toTrusted(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)
	case errors.Is(err, registry.ErrDisabled):
		return errs.NewTrusted(err, http.StatusForbidden)
	case errors.Is(err, registry.ErrBadSecret):
		return errs.NewTrusted(err, http.StatusUnauthorized)
	case errors.Is(err, registry.ErrInvalid):
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
