package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	errQueryNotAllowed   = errors.New("query parameters are not allowed")
	errPayloadNotAllowed = errors.New("request body is not allowed")
)

// requireNoQuery rejects any query string, including a bare "?".
func requireNoQuery(req *http.Request) error {
	if req.URL.RawQuery != "" || req.URL.ForceQuery {
		return errQueryNotAllowed
	}
	return nil
}

// requireNoPayload is the precondition of operations that take no input:
// no query, no body, and no header announcing one.
func requireNoPayload(req *http.Request) error {
	if err := requireNoQuery(req); err != nil {
		return err
	}
	return requireNoBody(req)
}

// requireNoBody rejects a body as well as a Content-Length or Content-Type
// header, even when they announce zero bytes.
func requireNoBody(req *http.Request) error {
	if req.ContentLength != 0 || len(req.TransferEncoding) > 0 {
		return errPayloadNotAllowed
	}
	if _, ok := req.Header["Content-Length"]; ok {
		return errPayloadNotAllowed
	}
	if req.Header.Get("Content-Type") != "" {
		return errPayloadNotAllowed
	}
	return nil
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are errors.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}
