package mid

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bitsim/node/business/web/auth"
	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/foundation/web"
)

// Authenticate validates the bearer token issued by the admin login and
// stores the admin name in the context.
func Authenticate(a *auth.Auth) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Expecting: bearer <token>
			parts := strings.Split(r.Header.Get("authorization"), " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				err := errors.New("expected authorization header format: bearer <token>")
				return errs.NewTrusted(err, http.StatusUnauthorized)
			}

			admin, err := a.Validate(parts[1])
			if err != nil {
				return errs.NewTrusted(errors.New("invalid token"), http.StatusUnauthorized)
			}

			ctx = auth.SetAdmin(ctx, admin)

			// Call the next handler.
			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
