package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"timesheet/internal/logging"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
)

// Policy names, also used as cache key prefixes.
const (
	PolicyManager         = "must-be-manager"
	PolicyProjectCreator  = "must-be-project-creator"
	PolicyProjectMember   = "must-be-project-member"
	PolicyReporteeManager = "must-be-reportee-manager"
)

// Facts answers the questions the policies ask.
type Facts interface {
	IsManager(ctx context.Context, userID uuid.UUID) (bool, error)
	IsProjectCreator(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	IsProjectMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	IsReporteeManager(ctx context.Context, managerID, reporteeID uuid.UUID) (bool, error)
}

// Authorizer enforces the named policies. Decisions are cached per policy,
// subject and resource for the configured TTL, so a decision can be stale
// for up to that long after the underlying data changed.
type Authorizer struct {
	facts     Facts
	decisions *cache.Cache
}

func NewAuthorizer(facts Facts, ttl time.Duration) *Authorizer {
	return &Authorizer{
		facts:     facts,
		decisions: cache.New(ttl, 2*ttl),
	}
}

func (a *Authorizer) decide(ctx context.Context, policy string, subject, resource uuid.UUID, check func() (bool, error)) (bool, error) {
	key := fmt.Sprintf("%s|%s|%s", policy, subject, resource)
	if allowed, ok := a.decisions.Get(key); ok {
		return allowed.(bool), nil
	}

	allowed, err := check()
	if err != nil {
		return false, err
	}
	a.decisions.SetDefault(key, allowed)
	return allowed, nil
}

// Forget drops every cached decision.
func (a *Authorizer) Forget() {
	a.decisions.Flush()
}

// require builds a middleware that allows the request when check passes for
// the caller and the resource found in route variable routeVar.
func (a *Authorizer) require(policy, routeVar string, check func(ctx context.Context, subject, resource uuid.UUID) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			resource := uuid.Nil
			if routeVar != "" {
				var err error
				resource, err = uuid.Parse(mux.Vars(r)[routeVar])
				if err != nil {
					http.Error(w, fmt.Sprintf("Invalid %s", routeVar), http.StatusBadRequest)
					return
				}
			}

			allowed, err := a.decide(r.Context(), policy, principal.ID, resource, func() (bool, error) {
				return check(r.Context(), principal.ID, resource)
			})
			if err != nil {
				logging.Logger.Errorf("Event ID: AUTHZ_CHECK_FAILED, Description: Policy %s for user %s failed: %v", policy, principal.ID, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				logging.Logger.Warnf("Event ID: AUTHZ_FORBIDDEN, Description: Policy %s denied user %s on %s %s", policy, principal.ID, r.Method, r.URL.Path)
				http.Error(w, "Access forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authorizer) RequireManager(next http.Handler) http.Handler {
	return a.require(PolicyManager, "", func(ctx context.Context, subject, _ uuid.UUID) (bool, error) {
		return a.facts.IsManager(ctx, subject)
	})(next)
}

func (a *Authorizer) RequireProjectCreator(next http.Handler) http.Handler {
	return a.require(PolicyProjectCreator, "projectId", a.facts.IsProjectCreator)(next)
}

func (a *Authorizer) RequireProjectMember(next http.Handler) http.Handler {
	return a.require(PolicyProjectMember, "projectId", a.facts.IsProjectMember)(next)
}

func (a *Authorizer) RequireReporteeManager(next http.Handler) http.Handler {
	return a.require(PolicyReporteeManager, "reporteeId", a.facts.IsReporteeManager)(next)
}
