package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/events"
	"kidboost.app/internal/family"
)

// Profiles -------------------------------------------------------------

// getProfile returns display data for a user. A missing profile is a plain
// 404; clients fall back to identity metadata defaults.
func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r); !ok {
		return
	}
	p, err := a.family.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) putProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "id")
	if id != userID {
		writeError(w, r, http.StatusForbidden, "cannot edit another user's profile")
		return
	}
	var p family.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = id
	out, err := a.family.UpsertProfile(r.Context(), p)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "profile.update", nil)
	writeJSON(w, http.StatusOK, out)
}

// Children -------------------------------------------------------------

func (a *API) listChildren(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	list, err := a.family.Children(r.Context(), scope)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": emptyIfNil(list)})
}

func (a *API) createChild(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var c family.Child
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.family.AddChild(r.Context(), scope, c)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "child.create", map[string]any{"child_id": out.ID})
	a.publish(scope.Owner(), events.EntityChild, events.ActionCreated, out.ID)
	w.Header().Set("Location", "/v1/children/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) updateChild(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var c family.Child
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c.ID = chi.URLParam(r, "id")
	out, err := a.family.UpdateChild(r.Context(), scope, c)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "child.update", map[string]any{"child_id": out.ID})
	a.publish(scope.Owner(), events.EntityChild, events.ActionUpdated, out.ID)
	writeJSON(w, http.StatusOK, out)
}

func (a *API) deleteChild(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.family.RemoveChild(r.Context(), scope, id); err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "child.delete", map[string]any{"child_id": id})
	a.publish(scope.Owner(), events.EntityChild, events.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// Tasks ----------------------------------------------------------------

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	list, err := a.family.Tasks(r.Context(), scope)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": emptyIfNil(list)})
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var t family.Task
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.family.AddTask(r.Context(), scope, t)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "task.create", map[string]any{"task_id": out.ID, "child_id": out.ChildID})
	a.publish(scope.Owner(), events.EntityTask, events.ActionCreated, out.ID)
	w.Header().Set("Location", "/v1/tasks/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var t family.Task
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t.ID = chi.URLParam(r, "id")
	out, err := a.family.UpdateTask(r.Context(), scope, t)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "task.update", map[string]any{"task_id": out.ID})
	a.publish(scope.Owner(), events.EntityTask, events.ActionUpdated, out.ID)
	writeJSON(w, http.StatusOK, out)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.family.RemoveTask(r.Context(), scope, id); err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "task.delete", map[string]any{"task_id": id})
	a.publish(scope.Owner(), events.EntityTask, events.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) completeTask(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	out, err := a.family.CompleteTask(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "task.completed", map[string]any{"task_id": out.ID, "points": out.Points})
	a.publish(scope.Owner(), events.EntityTask, events.ActionCompleted, out.ID)
	writeJSON(w, http.StatusOK, out)
}

func (a *API) approveTask(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	out, err := a.family.ApproveTask(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "task.approved", map[string]any{"task_id": out.ID, "points": out.Points})
	a.publish(scope.Owner(), events.EntityTask, events.ActionApproved, out.ID)
	writeJSON(w, http.StatusOK, out)
}

// Rewards --------------------------------------------------------------

func (a *API) listRewards(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	list, err := a.family.Rewards(r.Context(), scope)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": emptyIfNil(list)})
}

func (a *API) createReward(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var rw family.Reward
	if err := decodeJSON(w, r, &rw); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.family.AddReward(r.Context(), scope, rw)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "reward.create", map[string]any{"reward_id": out.ID})
	a.publish(scope.Owner(), events.EntityReward, events.ActionCreated, out.ID)
	w.Header().Set("Location", "/v1/rewards/"+out.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) updateReward(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var rw family.Reward
	if err := decodeJSON(w, r, &rw); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rw.ID = chi.URLParam(r, "id")
	out, err := a.family.UpdateReward(r.Context(), scope, rw)
	if err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "reward.update", map[string]any{"reward_id": out.ID})
	a.publish(scope.Owner(), events.EntityReward, events.ActionUpdated, out.ID)
	writeJSON(w, http.StatusOK, out)
}

func (a *API) deleteReward(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.family.RemoveReward(r.Context(), scope, id); err != nil {
		handleFamilyError(w, r, err)
		return
	}
	a.audit(r.Context(), "reward.delete", map[string]any{"reward_id": id})
	a.publish(scope.Owner(), events.EntityReward, events.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// emptyIfNil keeps list payloads as [] instead of null.
func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
