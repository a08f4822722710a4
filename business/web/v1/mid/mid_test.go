package mid_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/bitsim/node/business/web/auth"
	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/business/web/v1/mid"
	"github.com/bitsim/node/foundation/logger"
	"github.com/bitsim/node/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newApp(t *testing.T, a *auth.Auth) *web.App {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("Should be able to construct the logger: %v", err)
	}

	app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())

	app.Handle(http.MethodGet, "v1", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("no transactions"), http.StatusBadRequest)
	})
	app.Handle(http.MethodGet, "v1", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	})
	app.Handle(http.MethodGet, "v1", "/admin", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, auth.GetAdmin(ctx), http.StatusOK)
	}, mid.Authenticate(a))

	return app
}

func Test_Middleware(t *testing.T) {
	a := auth.New(auth.Config{Username: "admin", Password: "secret"})
	app := newApp(t, a)

	t.Log("Given the need to handle errors coming out of handlers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a handler returns a trusted error.", testID)
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/trusted", nil))

			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "no transactions") {
				t.Fatalf("\t%s\tTest %d:\tShould respond with the trusted status and message: %d %s", failed, testID, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest %d:\tShould respond with the trusted status and message.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a handler panics.", testID)
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))

			if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "boom") {
				t.Fatalf("\t%s\tTest %d:\tShould respond with a generic 500: %d %s", failed, testID, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest %d:\tShould respond with a generic 500.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen calling an admin route.", testID)
		{
			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin", nil))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("\t%s\tTest %d:\tShould reject a missing token: %d", failed, testID, w.Code)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a missing token.", success, testID)

			token, err := a.Login("admin", "secret")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to login: %v", failed, testID, err)
			}

			r := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			w = httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "admin") {
				t.Fatalf("\t%s\tTest %d:\tShould accept a valid token: %d %s", failed, testID, w.Code, w.Body.String())
			}
			t.Logf("\t%s\tTest %d:\tShould accept a valid token.", success, testID)
		}
	}
}
