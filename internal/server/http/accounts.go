package httpx

import (
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
)

type createAccountRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// updateAccountRequest mirrors the public projection so that read-only
// fields can be detected and refused. A JSON null counts as absent.
type updateAccountRequest struct {
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Password       *string `json:"password"`
	Email          *string `json:"email"`
	AccountCreated any     `json:"accountCreated"`
	AccountUpdated any     `json:"accountUpdated"`
}

func (r *Router) handleUser(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.notFound(w)
		return
	}
	if err := requireNoQuery(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload createAccountRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := r.accounts.Create(req.Context(), services.CreateAccountInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(account))
}

func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.notFound(w)
		return
	}
	if err := requireNoBody(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query, err := url.ParseQuery(req.URL.RawQuery)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed query")
		return
	}

	// other parameters, such as mail tracking tags, are ignored
	account, err := r.verifier.Verify(req.Context(), query.Get("token"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (r *Router) handleSelf(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		if err := requireNoPayload(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.requireAccount(true, r.getSelf)(w, req)
	case http.MethodPut:
		if err := requireNoQuery(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.requireAccount(true, r.updateSelf)(w, req)
	default:
		r.notFound(w)
	}
}

func (r *Router) getSelf(w http.ResponseWriter, req *http.Request) {
	account, ok := accountFromContext(req.Context())
	if !ok {
		r.logger.Error(req.Context(), "account context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

func (r *Router) updateSelf(w http.ResponseWriter, req *http.Request) {
	account, ok := accountFromContext(req.Context())
	if !ok {
		r.logger.Error(req.Context(), "account context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var payload updateAccountRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := r.accounts.Update(req.Context(), account, services.UpdateAccountInput{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Password:       payload.Password,
		Email:          payload.Email,
		AccountCreated: payload.AccountCreated != nil,
		AccountUpdated: payload.AccountUpdated != nil,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
