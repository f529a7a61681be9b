package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/agent/checkin", a.handleCheckIn)
		r.Get("/agent/tasks/{machineID}", a.handleTasks)
		r.Post("/agent/report", a.handleReport)

		r.Get("/machines", a.handleListMachines)
		r.Get("/machines/lookup", a.handleLookupMachine)
		r.Get("/machines/{machineID}", a.handleGetMachine)
		r.Post("/machines/{machineID}/assign_department", a.handleAssignDepartment)
		r.Post("/machines/{machineID}/extra_tools", a.handleExtraTools)
		r.Post("/machines/{machineID}/checklist_status", a.handleChecklistStatus)
		r.Get("/machines/{machineID}/checklist", a.handleChecklistSnapshot)
		r.Get("/machines/{machineID}/reports", a.handleReportHistory)

		r.Get("/departments", a.handleListDepartments)
		r.Get("/tools", a.handleListTools)
		r.Get("/tools/optional", a.handleListOptionalTools)
		r.Get("/checklist/items", a.handleListChecklistItems)
	})

	return r, nil
}
