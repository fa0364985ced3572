package gateway

import (
	"errors"
	"net/http"

	"github.com/kev765740/dependencywarden/internal/store"
)

func (gw *Gateway) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	status := r.URL.Query().Get("status")

	var err error
	alerts := []any{}
	if status != "" {
		list, lerr := gw.alerts.ListByStatus(r.Context(), status, limit)
		err = lerr
		for _, a := range list {
			alerts = append(alerts, a)
		}
	} else {
		list, lerr := gw.alerts.List(r.Context(), limit)
		err = lerr
		for _, a := range list {
			alerts = append(alerts, a)
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (gw *Gateway) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alert, err := gw.alerts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// handleRemediate triggers a synchronous remediation attempt. The outcome is
// returned directly; persisted state is visible via GET /api/alerts/{id}.
func (gw *Gateway) handleRemediate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := gw.alerts.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := gw.exec.Execute(r.Context(), id)
	writeJSON(w, http.StatusOK, out)
}

func (gw *Gateway) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := gw.exec.Retry(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}
