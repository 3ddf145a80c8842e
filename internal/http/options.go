package http

import (
	"net/http"

	"github.com/example/calendario-escolar/internal/domain"
)

type optionsResponse struct {
	Roles        []string `json:"roles"`
	Instrumentos []string `json:"instrumentos"`
	Bimestres    []int    `json:"bimestres"`
}

// serveOptions lists the closed value sets the registration and calendar
// forms offer.
func serveOptions(resp responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body optionsResponse
		for _, role := range domain.Roles() {
			body.Roles = append(body.Roles, string(role))
		}
		for _, instrumento := range domain.Instrumentos() {
			body.Instrumentos = append(body.Instrumentos, string(instrumento))
		}
		body.Bimestres = []int{1, 2, 3, 4}
		resp.writeJSON(r.Context(), w, http.StatusOK, body)
	}
}
