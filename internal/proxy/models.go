package proxy

import "net/http"

// modelsResponse mirrors OpenAI's GET /v1/models list shape.
type modelsResponse struct {
	Object string          `json:"object"`
	Data   []modelListItem `json:"data"`
}

type modelListItem struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// handleModels renders the registry's public model catalog, shared between
// /v1/models and /agents/v1/models.
func (e *Edge) handleModels(w http.ResponseWriter, r *http.Request) {
	infos := e.Registry.ToModels()
	out := modelsResponse{Object: "list", Data: make([]modelListItem, 0, len(infos))}
	for _, m := range infos {
		out.Data = append(out.Data, modelListItem{ID: m.ID, Object: "model", OwnedBy: m.OwnedBy})
	}
	writeJSON(r.Context(), w, out, http.StatusOK)
}

// handleModelsOptions answers the CORS preflight for /v1/models.
func handleModelsOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusNoContent)
}
