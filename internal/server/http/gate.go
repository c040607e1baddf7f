package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type accountContextKey string

const contextKeyAccount accountContextKey = "accountkeeper-account"

type accountSetter interface {
	setAccount(id string)
}

// requireAccount runs the access gate before next. Verified accounts are
// required unless requireVerified is false.
func (r *Router) requireAccount(requireVerified bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		email, password, ok := req.BasicAuth()
		if !ok {
			r.unauthorized(w)
			return
		}

		account, err := r.gate.Admit(req.Context(), email, password, requireVerified)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrorUnauthorized):
			r.unauthorized(w)
			return
		case errors.Is(err, common.ErrorForbidden):
			writeError(w, http.StatusForbidden, "account is not verified")
			return
		default:
			r.logger.Error(req.Context(), "access gate failed", "path", req.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if setter, ok := w.(accountSetter); ok {
			setter.setAccount(account.ID)
		}
		ctx := context.WithValue(req.Context(), contextKeyAccount, account)
		next(w, req.WithContext(ctx))
	}
}

// accountFromContext returns the account admitted by requireAccount.
func accountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(contextKeyAccount).(*models.Account)
	return account, ok && account != nil
}

func (r *Router) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="accountkeeper"`)
	writeError(w, http.StatusUnauthorized, "authentication required")
}
