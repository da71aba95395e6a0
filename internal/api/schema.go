package api

import (
	"net/http"

	"github.com/govsearch/govsearch/internal/schema"
)

type columnResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Samples     []string `json:"samples,omitempty"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema descriptor is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse(deps.Schema.Descriptor()))
}

func schemaResponse(d schema.Descriptor) map[string]any {
	columns := make([]columnResponse, 0, len(d.Columns))
	for _, name := range d.ColumnNames() {
		columns = append(columns, columnResponse{
			Name:        name,
			Description: d.Columns[name],
			Samples:     d.Samples[name],
		})
	}
	return map[string]any{
		"table":   d.Table,
		"columns": columns,
	}
}
