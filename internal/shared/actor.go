package shared

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const (
	// HeaderAccountID selects the issuing account for a request.
	HeaderAccountID = "X-Account-ID"
	// HeaderActorID identifies the staff member making the request.
	HeaderActorID = "X-Actor-ID"
)

// ErrActorMissing occurs when a staff request carries no account scope.
var ErrActorMissing = errors.New("actor missing")

// Actor is the caller on whose behalf a request runs.
type Actor struct {
	AccountID int64
	UserID    int64
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorFromRequest reads the actor headers set by the gateway.
func ActorFromRequest(r *http.Request) (Actor, error) {
	account, err := parseID(r.Header.Get(HeaderAccountID))
	if err != nil || account <= 0 {
		return Actor{}, ErrActorMissing
	}
	user, err := parseID(r.Header.Get(HeaderActorID))
	if err != nil {
		return Actor{}, ErrActorMissing
	}
	return Actor{AccountID: account, UserID: user}, nil
}

// RequireActor rejects requests without actor headers and stores the actor in
// the request context.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ActorFromRequest(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
