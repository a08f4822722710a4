// Package registrygrp maintains the group of handlers for users and tokens.
package registrygrp

import (
	"context"
	"errors"
	"net/http"

	"github.com/bitsim/node/business/core/registry"
	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/foundation/nameservice"
	"github.com/bitsim/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of registry endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Registry *registry.Core
	NS       *nameservice.NameService
}

// Register adds a new user with its public proof.
func (h Handlers) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nu registry.NewUser
	if err := web.Decode(r, &nu); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	usr, err := h.Registry.Register(nu)
	if err != nil {
		return toTrusted(err)
	}

	if h.NS != nil {
		h.NS.Add(usr.Address, usr.Username)
	}

	return web.Respond(ctx, w, usr, http.StatusCreated)
}

// Challenge issues a nonce for the user to sign.
func (h Handlers) Challenge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Address string `json:"address"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	chal, err := h.Registry.Challenge(req.Address)
	if err != nil {
		return toTrusted(err)
	}

	resp := struct {
		Challenge string `json:"challenge"`
	}{
		Challenge: chal,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Verify checks the signed challenge.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	usr, err := h.Registry.VerifyChallenge(req.Address, req.Signature)
	if err != nil {
		return toTrusted(err)
	}

	resp := struct {
		Address  string `json:"address"`
		Username string `json:"username"`
	}{
		Address:  usr.Address,
		Username: usr.Username,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Tokens returns every token ordered by symbol.
func (h Handlers) Tokens(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tkns, err := h.Registry.Tokens()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, tkns, http.StatusOK)
}

// CreateToken adds a new token.
func (h Handlers) CreateToken(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nt registry.NewToken
	if err := web.Decode(r, &nt); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tkn, err := h.Registry.CreateToken(nt)
	if err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, tkn, http.StatusCreated)
}

// toTrusted maps the registry errors a client can act on to a status.
func toTrusted(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)
	case errors.Is(err, registry.ErrExists):
		return errs.NewTrusted(err, http.StatusConflict)
	case errors.Is(err, registry.ErrNoChallenge):
		return errs.NewTrusted(err, http.StatusBadRequest)
	case errors.Is(err, registry.ErrBadSignature):
		return errs.NewTrusted(err, http.StatusUnauthorized)
	}

	return err
}
