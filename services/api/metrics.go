package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prepd_checkins_total",
		Help: "Agent check-ins processed.",
	})
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepd_reports_total",
		Help: "Installation reports received, by aggregate outcome.",
	}, []string{"status"})
	checklistEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prepd_checklist_entries_total",
		Help: "Checklist ledger entries applied through the bulk endpoint.",
	})
)
