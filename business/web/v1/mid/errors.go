package mid

import (
	"context"
	"net/http"

	v1 "github.com/ekehi/blockchain/business/web/v1"
	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/validate"
	"github.com/ekehi/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform
// way. Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			if err := handler(ctx, w, r); err != nil {
				log.Errorw("ERROR", "traceid", v.TraceID, "message", err)

				var er v1.ErrorResponse
				var status int

				switch {
				case validate.IsFieldErrors(err):
					fieldErrors := validate.GetFieldErrors(err)
					er = v1.ErrorResponse{
						Error:  database.KindInvalidTransaction,
						Fields: fieldErrors.Fields(),
					}
					status = http.StatusBadRequest

				case database.ErrorKind(err) != "":
					kind := database.ErrorKind(err)
					er = v1.ErrorResponse{
						Error:   kind,
						Message: err.Error(),
					}
					status = kindStatus(kind)

				case v1.IsRequestError(err):
					reqErr := v1.GetRequestError(err)
					er = v1.ErrorResponse{
						Error:   "BadRequest",
						Message: reqErr.Error(),
					}
					status = reqErr.Status

				default:
					er = v1.ErrorResponse{
						Error: http.StatusText(http.StatusInternalServerError),
					}
					status = http.StatusInternalServerError
				}

				if err := web.Respond(ctx, w, er, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shutdown the service.
				if web.IsShutdown(err) {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}

// kindStatus maps the error kinds to HTTP status codes: 4xx for client
// problems, 5xx for internal ones.
func kindStatus(kind string) int {
	switch kind {
	case database.KindInvalidAddress,
		database.KindInvalidTransaction,
		database.KindInsufficientBalance,
		database.KindUnsupported:
		return http.StatusBadRequest

	case database.KindDuplicateTransaction:
		return http.StatusConflict

	case database.KindInvalidBlock, database.KindChainInvalid:
		return http.StatusNotAcceptable

	case database.KindPeerUnreachable:
		return http.StatusBadGateway

	case database.KindSyncSkipped:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
