package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"krafti/internal/bus"
	"krafti/internal/pipeline"
)

func (a *API) request(w http.ResponseWriter, r *http.Request, withID bool) (pipeline.Request, bool) {
	props, err := properties(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return pipeline.Request{}, false
	}
	req := pipeline.Request{Properties: props, Viewer: ViewerFrom(r.Context())}
	if withID {
		id, ok := pathID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "Record not found")
			return pipeline.Request{}, false
		}
		req.ID = id
	}
	return req, true
}

func (a *API) handleList(reg *pipeline.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := a.request(w, r, false)
		if !ok {
			return
		}
		list, err := reg.List(r.Context(), chi.URLParam(r, "entity"), req)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func (a *API) handleGet(reg *pipeline.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := a.request(w, r, true)
		if !ok {
			return
		}
		row, err := reg.Get(r.Context(), chi.URLParam(r, "entity"), req)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, row)
	}
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.request(w, r, false)
	if !ok {
		return
	}
	entity := chi.URLParam(r, "entity")
	row, err := a.admin.Create(r.Context(), entity, req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	a.publish(r, entity, pipeline.OpCreate, recordID(row))
	respondJSON(w, http.StatusOK, row)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.request(w, r, true)
	if !ok {
		return
	}
	entity := chi.URLParam(r, "entity")
	row, err := a.admin.Update(r.Context(), entity, req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	a.publish(r, entity, pipeline.OpUpdate, req.ID)
	respondJSON(w, http.StatusOK, row)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := a.request(w, r, true)
	if !ok {
		return
	}
	entity := chi.URLParam(r, "entity")
	if err := a.admin.Delete(r.Context(), entity, req); err != nil {
		respondFailure(w, r, err)
		return
	}
	a.publish(r, entity, pipeline.OpDelete, req.ID)
	w.WriteHeader(http.StatusNoContent)
}

// publish emits a committed admin mutation. Delivery failures are logged
// and never fail the request.
func (a *API) publish(r *http.Request, entity string, op pipeline.Op, id uint) {
	if a.bus == nil {
		return
	}
	ev := bus.Event{
		Entity:  entity,
		Op:      string(op),
		ID:      id,
		ActorID: ViewerFrom(r.Context()).ID,
		At:      a.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()
	if err := a.bus.Publish(ctx, ev.Subject("admin"), ev); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("subject", ev.Subject("admin")).Msg("publish event")
	}
}
