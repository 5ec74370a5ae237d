// Package response writes JSON envelopes and file attachments.
package response

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"
)

// Response is the JSON envelope of every non-file reply.
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes status and the envelope built from message, data and err.
func WriteJSON(w http.ResponseWriter, status int, message string, data any, err error) {
	var errorMsg string
	if err != nil {
		errorMsg = err.Error()
	}

	JSON(w, status, Response{
		Message: message,
		Data:    data,
		Error:   errorMsg,
	})
}

// JSON writes status and v as is, without the envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes)
}

func OK(w http.ResponseWriter, message string, res any) {
	WriteJSON(w, http.StatusOK, message, res, nil)
}

func BadRequest(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusBadRequest, message, nil, err)
}

func NotFound(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusNotFound, message, nil, err)
}

func GatewayTimeout(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusGatewayTimeout, message, nil, err)
}

func InternalServerError(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusInternalServerError, message, nil, err)
}

// Attachment streams content as a download named filename.
// Range and conditional requests are handled by http.ServeContent.
func Attachment(w http.ResponseWriter, r *http.Request, filename, mediaType string, modtime time.Time,
	content io.ReadSeeker,
) {
	w.Header().Set("Content-Type", mediaType)

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Disposition", disposition)

	http.ServeContent(w, r, filename, modtime, content)
}
