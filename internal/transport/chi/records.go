package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"

	projectuc "github.com/kailas-cloud/esre-console/internal/usecase/project"
)

// mountRecords registers list/create on "/" and get/update/delete on
// "/{idParam}" for one project-scoped record kind.
func mountRecords[T any](s *Server, r gochi.Router, res *projectuc.Resource[T], idParam string) {
	h := recordHandlers[T]{s: s, res: res, idParam: idParam}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{"+idParam+"}", h.get)
	r.Put("/{"+idParam+"}", h.update)
	r.Delete("/{"+idParam+"}", h.delete)
}

type recordHandlers[T any] struct {
	s       *Server
	res     *projectuc.Resource[T]
	idParam string
}

func (h recordHandlers[T]) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.res.List(r.Context(), param(r, "project"))
	if err != nil {
		h.s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h recordHandlers[T]) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.res.Get(r.Context(), param(r, "project"), param(r, h.idParam))
	if err != nil {
		h.s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h recordHandlers[T]) create(w http.ResponseWriter, r *http.Request) {
	var body T
	if !h.s.decode(w, r, &body) {
		return
	}
	item, err := h.res.Create(r.Context(), param(r, "project"), body)
	if err != nil {
		h.s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h recordHandlers[T]) update(w http.ResponseWriter, r *http.Request) {
	var body T
	if !h.s.decode(w, r, &body) {
		return
	}
	item, err := h.res.Update(r.Context(), param(r, "project"), param(r, h.idParam), body)
	if err != nil {
		h.s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h recordHandlers[T]) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.res.Delete(r.Context(), param(r, "project"), param(r, h.idParam)); err != nil {
		h.s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
