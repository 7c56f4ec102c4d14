package httpserver

import (
	"net/http"

	"github.com/ndolgov/bankcards/internal/errs"
)

func (s *Server) handleListAllCards(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}
	vs, err := s.cards.ListAll(r.Context(), actor, pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(vs))
}

func (s *Server) handleListUserCards(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	vs, err := s.cards.ListByOwner(r.Context(), actor, id, pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponses(vs))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeError(w, errs.ErrUnauthenticated)
		return
	}
	users, err := s.users.List(r.Context(), actor, pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	u, err := s.users.Block(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleActivateUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	u, err := s.users.Activate(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := s.users.Delete(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
