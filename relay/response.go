package relay

import (
	"encoding/base64"
	"errors"
	"net/http"

	"relayer/types"
)

// Respond maps the outcome of Relay onto the HTTP status and body of the
// request/response contract.
func Respond(res types.SubmissionResult, err error) (int, types.RelayResponse) {
	if err == nil {
		return http.StatusOK, types.RelayResponse{
			Status:        types.StatusSuccess,
			RelayerSigned: true,
			Submission:    &res,
		}
	}

	var rerr *types.RelayError
	if !errors.As(err, &rerr) {
		return http.StatusInternalServerError, types.RelayResponse{
			Status: types.StatusError,
			Reason: "internal error",
		}
	}

	resp := types.RelayResponse{
		Status: rerr.Kind.ResponseStatus(),
		Reason: rerr.Reason,
		Code:   rerr.Kind,
	}
	if rerr.Kind == types.SubmissionFailed {
		resp.RelayerSigned = true
		resp.Submission = &res
		resp.SignedTransaction = base64.StdEncoding.EncodeToString(rerr.SignedTransaction)
	}
	return rerr.Kind.HTTPStatus(), resp
}
