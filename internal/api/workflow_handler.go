package api

import "net/http"

// ListWorkflows возвращает доступные пайплайны.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := h.workflows.List()

	result := make([]WorkflowResponse, len(defs))
	for i, d := range defs {
		result[i] = WorkflowFromDefinition(d)
	}

	List(w, result, len(result))
}
