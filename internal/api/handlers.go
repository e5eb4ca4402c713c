package api

import (
	"context"
	"errors"
	"net/http"

	"timesheet/internal/aggregation"
	"timesheet/internal/auth"
	"timesheet/internal/db/models"
	"timesheet/internal/service"

	"github.com/google/uuid"
)

const defaultPageSize = 30

func principal(r *http.Request) auth.Principal {
	// Authenticate guarantees the principal for every handler below
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func (h *handler) settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.services.Settings.Get())
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	profile, err := h.services.Users.Profile(r.Context(), p.ID, p.Name, p.UPN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// issueLinkCode returns the code the user sends to the Discord bot with /link.
func (h *handler) issueLinkCode(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	code, err := h.services.Notifications.IssueLinkCode(r.Context(), p.ID, p.Name, LocaleFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (h *handler) unlinkConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Notifications.Remove(r.Context(), principal(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) reportees(w http.ResponseWriter, r *http.Request) {
	users, err := h.services.Users.Reportees(r.Context(), principal(r).ID, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *handler) reporteeTimesheets(w http.ResponseWriter, r *http.Request) {
	reportee, err := pathUUID(r, "reporteeId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	statuses, err := queryStatuses(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := h.services.Timesheets.ReporteeTimesheets(r.Context(), reportee, start, end, statuses...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (h *handler) submittedRequests(w http.ResponseWriter, r *http.Request) {
	reportee, err := pathUUID(r, "reporteeId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	requests, err := h.services.Timesheets.SubmittedRequests(r.Context(), reportee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

type reviewFunc func(ctx context.Context, reporteeID uuid.UUID, req service.ReviewRequest) ([]models.Timesheet, error)

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.services.Timesheets.Approve)
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.services.Timesheets.Reject)
}

func (h *handler) review(w http.ResponseWriter, r *http.Request, decide reviewFunc) {
	reportee, err := pathUUID(r, "reporteeId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := decide(r.Context(), reportee, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handler) userTimesheets(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := h.services.Timesheets.UserTimesheets(r.Context(), principal(r).ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *handler) saveTimesheets(w http.ResponseWriter, r *http.Request) {
	var reqs []service.TimesheetRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := h.services.Timesheets.Save(r.Context(), principal(r).ID, reqs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) submitTimesheets(w http.ResponseWriter, r *http.Request) {
	var dates []service.Date
	if err := decodeJSON(w, r, &dates); err != nil {
		writeError(w, r, err)
		return
	}
	submitted, err := h.services.Timesheets.Submit(r.Context(), principal(r).ID, dates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitted)
}

func (h *handler) pendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.services.Timesheets.PendingRequests(r.Context(), principal(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "pageNumber", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "pageSize", defaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	projects, err := h.services.Projects.List(r.Context(), principal(r).ID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req service.ProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.services.Projects.Create(r.Context(), principal(r).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// members of the new project may have cached denials
	h.authz.Forget()
	writeJSON(w, http.StatusCreated, project)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dashboard, err := h.services.Projects.Dashboard(r.Context(), principal(r).ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.services.Projects.Get(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.ProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.services.Projects.Update(r.Context(), projectID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *handler) utilization(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.services.Projects.Utilization(r.Context(), projectID, start, end)
	if errors.Is(err, aggregation.ErrUnknownMember) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) membersOverview(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := h.services.Members.Overview(r.Context(), projectID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *handler) addMembers(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var reqs []service.MemberRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, r, err)
		return
	}
	members, err := h.services.Members.Add(r.Context(), projectID, reqs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.authz.Forget()
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) updateMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	memberID, err := pathUUID(r, "memberId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		IsBillable bool `json:"isBillable"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	member, err := h.services.Members.Update(r.Context(), projectID, memberID, body.IsBillable)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *handler) removeMembers(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ids []uuid.UUID
	if err := decodeJSON(w, r, &ids); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.services.Members.Remove(r.Context(), projectID, ids); err != nil {
		writeError(w, r, err)
		return
	}
	h.authz.Forget()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) tasksOverview(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := h.services.Tasks.Overview(r.Context(), projectID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *handler) createTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var reqs []service.TaskRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := h.services.Tasks.Create(r.Context(), projectID, reqs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tasks)
}

func (h *handler) removeTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ids []uuid.UUID
	if err := decodeJSON(w, r, &ids); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.services.Tasks.Remove(r.Context(), projectID, ids); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addMemberTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.services.Tasks.AddMemberTask(r.Context(), principal(r).ID, projectID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *handler) removeMemberTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	taskID, err := pathUUID(r, "taskId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.services.Tasks.RemoveMemberTask(r.Context(), principal(r).ID, projectID, taskID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
