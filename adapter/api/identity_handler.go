package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	identityApp "github.com/felixgeelhaar/billora/internal/identity/application"
	"github.com/felixgeelhaar/billora/internal/identity/domain"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	Profile  domain.Profile `json:"profile"`
}

type updateUserRequest struct {
	Profile domain.Profile `json:"profile"`
	Active  *bool          `json:"active"`
}

type authHandler struct {
	identity *identityApp.Service
}

func newAuthHandler(identity *identityApp.Service) *authHandler {
	return &authHandler{identity: identity}
}

func (h *authHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	return r
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.identity.Register(r.Context(), identityApp.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile:  req.Profile,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identityApp.NewUserView(user))
}

type userHandler struct {
	identity *identityApp.Service
}

func newUserHandler(identity *identityApp.Service) *userHandler {
	return &userHandler{identity: identity}
}

func (h *userHandler) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	return r
}

func (h *userHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u *domain.User, _ int) identityApp.UserView {
		return identityApp.NewUserView(u)
	}))
}

func (h *userHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.identity.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityApp.NewUserView(user))
}

func (h *userHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.identity.UpdateUser(r.Context(), id, identityApp.UpdateInput{
		Profile: req.Profile,
		Active:  req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityApp.NewUserView(user))
}

func (h *userHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.identity.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
