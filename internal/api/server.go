// Package api exposes the services over a JSON REST interface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"timesheet/internal/auth"
	"timesheet/internal/logging"
	"timesheet/internal/service"

	"github.com/gorilla/mux"
	"golang.org/x/text/language"
)

type Options struct {
	Services   *service.Services
	Validator  *auth.Validator
	Authorizer *auth.Authorizer
	// BotValidator checks Bot Framework tokens on /api/messages. The route
	// is not registered when nil.
	BotValidator *auth.Validator
	// Locales are the supported languages, default first.
	Locales        []language.Tag
	AllowedOrigins []string
}

type handler struct {
	services *service.Services
	authz    *auth.Authorizer
}

// NewRouter wires every route with its authorization policy.
func NewRouter(opts Options) http.Handler {
	h := &handler{services: opts.Services, authz: opts.Authorizer}
	locales := opts.Locales
	if len(locales) == 0 {
		locales = []language.Tag{language.AmericanEnglish}
	}

	r := mux.NewRouter()
	r.Use(recoverPanics, logRequests, withLocale(locales))

	if opts.BotValidator != nil {
		r.Handle("/api/messages", botAuthenticate(opts.BotValidator, http.HandlerFunc(h.messages))).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(opts.Validator.Authenticate)

	manager := opts.Authorizer.RequireManager
	creator := opts.Authorizer.RequireProjectCreator
	member := opts.Authorizer.RequireProjectMember
	reporteeManager := opts.Authorizer.RequireReporteeManager
	handle := func(path, method string, fn http.HandlerFunc, policies ...func(http.Handler) http.Handler) {
		var next http.Handler = fn
		for _, p := range policies {
			next = p(next)
		}
		api.Handle(path, next).Methods(method)
	}

	handle("/settings", http.MethodGet, h.settings)

	handle("/users/me", http.MethodGet, h.profile)
	handle("/users/me/conversation", http.MethodPost, h.issueLinkCode)
	handle("/users/me/conversation", http.MethodDelete, h.unlinkConversation)
	handle("/users/reportees", http.MethodGet, h.reportees, manager)
	handle("/users/{reporteeId}/timesheets", http.MethodGet, h.reporteeTimesheets, reporteeManager)
	handle("/users/{reporteeId}/timesheets/submitted", http.MethodGet, h.submittedRequests, reporteeManager)
	handle("/users/{reporteeId}/timesheets/approve", http.MethodPost, h.approve, reporteeManager)
	handle("/users/{reporteeId}/timesheets/reject", http.MethodPost, h.reject, reporteeManager)

	handle("/timesheets", http.MethodGet, h.userTimesheets)
	handle("/timesheets", http.MethodPost, h.saveTimesheets)
	handle("/timesheets/submit", http.MethodPost, h.submitTimesheets)
	handle("/timesheets/requests", http.MethodGet, h.pendingRequests, manager)

	handle("/projects", http.MethodGet, h.listProjects, manager)
	handle("/projects", http.MethodPost, h.createProject, manager)
	handle("/projects/dashboard", http.MethodGet, h.dashboard, manager)
	handle("/projects/{projectId}", http.MethodGet, h.getProject, creator)
	handle("/projects/{projectId}", http.MethodPatch, h.updateProject, creator)
	handle("/projects/{projectId}/utilization", http.MethodGet, h.utilization, creator)
	handle("/projects/{projectId}/members", http.MethodGet, h.membersOverview, creator)
	handle("/projects/{projectId}/members", http.MethodPost, h.addMembers, creator)
	handle("/projects/{projectId}/members/delete", http.MethodPost, h.removeMembers, creator)
	handle("/projects/{projectId}/members/{memberId}", http.MethodPatch, h.updateMember, creator)
	handle("/projects/{projectId}/tasks", http.MethodGet, h.tasksOverview, creator)
	handle("/projects/{projectId}/tasks", http.MethodPost, h.createTasks, creator)
	handle("/projects/{projectId}/tasks/delete", http.MethodPost, h.removeTasks, creator)
	handle("/projects/{projectId}/tasks/member", http.MethodPost, h.addMemberTask, member)
	handle("/projects/{projectId}/tasks/{taskId}/member", http.MethodDelete, h.removeMemberTask, member)

	return cors(opts.AllowedOrigins)(r)
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: HTTP_SERVER_START, Description: Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Logger.Info("Event ID: HTTP_SERVER_STOP, Description: Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
