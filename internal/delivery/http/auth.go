package http

import "net/http"

// AuthVerifier checks the admin session-token header on `/api/admin/*`
// requests. spec.md §1 scopes HMAC/JWT verification itself out of this
// repo's responsibility ("specified only as a contract") — a real
// deployment supplies a concrete implementation (e.g. verifying the
// platform's signed session token); this interface is what the admin
// route wiring expects it to satisfy.
type AuthVerifier interface {
	Verify(r *http.Request) (storeID string, err error)
}

// InstallHandler exposes the commerce platform's standard OAuth
// install/callback flow. spec.md §1 scopes the OAuth flow itself out of
// this repo ("the commerce-platform OAuth/install flow" is an external
// collaborator) — this interface is the contract a real implementation
// satisfies so `/api/auth/install` and `/api/auth/callback` have a home
// in the route table without this repo owning the OAuth dance.
type InstallHandler interface {
	Install(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
}
