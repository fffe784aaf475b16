package mid

import (
	"context"
	"errors"
	"net/http"

	v1 "github.com/chainlite/node/business/web/v1"
	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/mempool"
	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/blockchain/state"
	"github.com/chainlite/node/foundation/validate"
	"github.com/chainlite/node/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform way.
// Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// If the context is missing this value, request the service
			// to be shutdown gracefully.
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			// Run the next handler and catch any propagated error.
			if err := handler(ctx, w, r); err != nil {

				// Log the error.
				log.Errorw("ERROR", "traceid", v.TraceID, "ERROR", err)

				// Build out the error response.
				status, data, description := classify(err)
				resp := v1.NewResponse(status, v1.ErrorCode(status), description, data)

				// Respond with the error back to the client.
				if err := web.Respond(ctx, w, resp, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shutdown the service.
				if web.IsShutdown(err) {
					return err
				}
			}

			// The error has been handled so we can stop propagating it.
			return nil
		}

		return h
	}

	return m
}

// classify maps an error to the status, data and description sent to the
// client. Unexpected errors are hidden behind the status text.
func classify(err error) (int, v1.ErrorData, string) {
	if fe := validate.GetFieldErrors(err); fe != nil {
		return http.StatusBadRequest, v1.ErrorData{Error: "data validation error", Fields: fe.Fields()}, fe.Error()
	}

	status := http.StatusInternalServerError
	switch {
	case v1.IsRequestError(err):
		status = v1.GetRequestError(err).Status
	case errors.Is(err, mempool.ErrDuplicateTransaction):
		status = http.StatusConflict
	case errors.Is(err, state.ErrInvalidMinerAddress),
		errors.Is(err, peer.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrProofNotFound),
		errors.Is(err, state.ErrChainChanged):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		text := http.StatusText(http.StatusInternalServerError)
		return status, v1.ErrorData{Error: text}, "An unexpected error occurred"
	}

	return status, v1.ErrorData{Error: err.Error()}, err.Error()
}
