package handlers

import (
	"net/http"

	"wellness/internal/core"
	"wellness/internal/types"
)

// requireUser returns the authenticated user, or writes a 401 and reports
// false. Routes behind AuthMiddleware always carry a user actor.
func requireUser(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.Type != types.ActorTypeUser || actor.ID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return types.Actor{}, false
	}
	return actor, true
}
