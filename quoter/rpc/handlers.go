package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/qerr"
)

const (
	maxQuoteBodyBytes    = 1 << 20
	internalErrorMessage = "internal server error"
	timeoutErrorMessage  = "route computation timed out"
)

type quoteHandler struct {
	quoter QuoteService
}

func newQuoteHandler(quoter QuoteService) *quoteHandler {
	return &quoteHandler{quoter: quoter}
}

// test is the liveness route of the public API
func (h *quoteHandler) test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// quote writes the engine's route verbatim, or the literal null when there is no route.
// Failures were already logged by the quoter.
func (h *quoteHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuoteBodyBytes))
	if err := dec.Decode(&req); err != nil {
		Logger.Debug().Err(err).Msg("Malformed quote request body")
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	route, err := h.quoter.Quote(r.Context(), req)
	if err != nil {
		status := qerr.HTTPStatus(err)
		switch status {
		case http.StatusBadRequest:
			writeJSONError(w, status, validationMessage(err))
		case http.StatusGatewayTimeout:
			writeJSONError(w, status, timeoutErrorMessage)
		default:
			writeJSONError(w, http.StatusInternalServerError, internalErrorMessage)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if route == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	_, _ = w.Write(route)
}

// validationMessage is the rejection text without any wrapped internals
func validationMessage(err error) string {
	if qe, ok := qerr.As(err); ok {
		return qe.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
