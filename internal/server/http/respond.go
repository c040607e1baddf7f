package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// accountView is the public projection of an account.
type accountView struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	IsVerified     bool      `json:"isVerified"`
	AccountCreated time.Time `json:"accountCreated"`
	AccountUpdated time.Time `json:"accountUpdated"`
}

func newAccountView(a *models.Account) accountView {
	return accountView{
		ID:             a.ID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		IsVerified:     a.IsVerified,
		AccountCreated: a.AccountCreated.UTC(),
		AccountUpdated: a.AccountUpdated.UTC(),
	}
}

type attachmentView struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	URL        string `json:"url"`
	UploadDate string `json:"uploadDate"`
	AccountID  string `json:"accountId"`
}

func newAttachmentView(a *models.Attachment) attachmentView {
	return attachmentView{
		ID:         a.ID,
		FileName:   a.FileName,
		URL:        a.URL,
		UploadDate: a.UploadDate.Format(time.DateOnly),
		AccountID:  a.AccountID,
	}
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes. Conflicts are reported
// as 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrTokenMissing),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
