package handler

import "net/http"

// DatabaseStatus reports whether the database connection is up.
// *database.Connector implements it.
type DatabaseStatus interface {
	Connected() bool
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health answers 200 while the process runs. The database field tells a
// degraded instance (no connection yet, or a failed one) from a healthy one.
//
// HTTP: GET /health
func Health(db DatabaseStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "connected"}
		if !db.Connected() {
			resp.Status = "degraded"
			resp.Database = "disconnected"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
