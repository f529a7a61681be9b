package api

import "net/http"

func (a *API) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	depts, err := a.store.ListDepartments(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"departments": depts})
}

func (a *API) handleListTools(w http.ResponseWriter, r *http.Request) {
	a.listTools(w, r, false)
}

func (a *API) handleListOptionalTools(w http.ResponseWriter, r *http.Request) {
	a.listTools(w, r, true)
}

func (a *API) listTools(w http.ResponseWriter, r *http.Request, onlyOptional bool) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	tools, err := a.store.ListTools(ctx, onlyOptional)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (a *API) handleListChecklistItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	items, err := a.store.ListChecklistItems(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}
