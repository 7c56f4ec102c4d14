package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
)

// actorAndID pulls the authenticated actor and the {id} route parameter.
func actorAndID(w http.ResponseWriter, r *http.Request) (model.Actor, uuid.UUID, bool) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return model.Actor{}, uuid.Nil, false
	}
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad id"})
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func (s *Server) handleIssueCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}
	v, err := s.cards.Issue(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardResponse(v))
}

func (s *Server) handleListMyCards(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}
	vs, err := s.cards.ListMine(r.Context(), actor, pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(vs))
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	v, err := s.cards.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(v))
}

func (s *Server) handleBlockCard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	v, err := s.cards.Block(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(v))
}

func (s *Server) handleActivateCard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	v, err := s.cards.Activate(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(v))
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := s.cards.Delete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad request body"})
		return
	}
	src, err := uuid.FromString(req.SourceCardID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad source card id"})
		return
	}
	dst, err := uuid.FromString(req.DestinationCardID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad destination card id"})
		return
	}
	if err := s.transfers.Transfer(r.Context(), actor, src, dst, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
