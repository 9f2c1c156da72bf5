package rpc

import (
	"encoding/json"
	"net/http"
	"strings"
)

// NewHTTPHandler mounts every tool-RPC operation at
// POST /rpc/<operation_name>, body is the JSON-encodable argument map,
// response is the JSON-encodable result map — the HTTP equivalent of
// ServeStdio's request/response shape (spec.md §6: "Transport is either
// line-framed JSON over stdio or HTTP streaming; the core does not
// care which"). Grounded on core/agent.go's health/capabilities
// endpoint registration alongside per-capability routes.
func NewHTTPHandler(reg *Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	})

	mux.HandleFunc("/operations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"operations": reg.Operations()})
	})

	mux.HandleFunc("/rpc/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		op := strings.TrimPrefix(r.URL.Path, "/rpc/")
		var args map[string]interface{}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "malformed request body: " + err.Error()})
				return
			}
		}
		result := reg.Dispatch(op, args)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})

	return mux
}
