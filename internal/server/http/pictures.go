package httpx

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
)

func (r *Router) handlePicture(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		if err := requireNoQuery(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.requireAccount(true, r.uploadPicture)(w, req)
	case http.MethodGet, http.MethodDelete:
		if err := requireNoPayload(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Method == http.MethodGet {
			r.requireAccount(true, r.getPicture)(w, req)
		} else {
			r.requireAccount(true, r.deletePicture)(w, req)
		}
	default:
		r.notFound(w)
	}
}

func (r *Router) uploadPicture(w http.ResponseWriter, req *http.Request) {
	account, ok := accountFromContext(req.Context())
	if !ok {
		r.logger.Error(req.Context(), "account context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if r.maxUploadSize > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadSize+multipartOverhead)
	}
	if err := req.ParseMultipartForm(r.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "profile picture is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	file, header, err := req.FormFile(pictureField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "profile picture is required")
		return
	}
	defer file.Close()

	attachment, err := r.pictures.Upload(req.Context(), account, services.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAttachmentView(attachment))
}

func (r *Router) getPicture(w http.ResponseWriter, req *http.Request) {
	account, ok := accountFromContext(req.Context())
	if !ok {
		r.logger.Error(req.Context(), "account context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	attachment, err := r.pictures.Get(req.Context(), account)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttachmentView(attachment))
}

func (r *Router) deletePicture(w http.ResponseWriter, req *http.Request) {
	account, ok := accountFromContext(req.Context())
	if !ok {
		r.logger.Error(req.Context(), "account context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := r.pictures.Delete(req.Context(), account); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
