package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Warehouses serves GET /api/nova-poshta-warehouses?city=. Lookup failures
// yield an empty list.
func (h *Handler) Warehouses(w http.ResponseWriter, r *http.Request) {
	ws := h.delivery.Warehouses(r.Context(), r.URL.Query().Get("city"))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("warehouses", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, wh := range ws {
						e.Obj(func(e *jx.Encoder) {
							str(e, "id", wh.ID)
							str(e, "name", wh.Name)
						})
					}
				})
			})
		})
	})
}
