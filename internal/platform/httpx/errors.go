package httpx

import (
	"errors"
	"net/http"
)

// ErrMalformed marks a request body that could not be decoded.
var ErrMalformed = errors.New("malformed request body")

// Status pairs an error with the HTTP status it maps to.
type Status struct {
	Code      int
	Retryable bool
	// Message replaces err.Error() in the response when set.
	Message string
}

// Classifier maps a domain error to a response status. ok is false when the
// error is not one the classifier knows.
type Classifier func(err error) (status Status, fields map[string]string, ok bool)

// RespondError maps err through classify and writes an error envelope.
// Unknown errors become 500 without leaking their message.
func RespondError(w http.ResponseWriter, err error, classify Classifier) {
	if errors.Is(err, ErrMalformed) {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if classify != nil {
		if st, fields, ok := classify(err); ok {
			msg := st.Message
			if msg == "" {
				msg = err.Error()
			}
			JSON(w, st.Code, Envelope{Error: msg, Fields: fields, Retryable: st.Retryable})
			return
		}
	}
	Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
