package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/catalog"
	ordergrpc "github.com/example/orderdesk/pkg/grpc"
	"github.com/example/orderdesk/pkg/session"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorResponse is the body of every non-2xx answer. Session is the
// unchanged session when a command was rejected.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Session *session.Snapshot `json:"session,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{session.ErrSessionClosed, http.StatusNotFound, "session_closed"},
	{catalog.ErrNotFound, http.StatusNotFound, "not_found"},
	{wizard.ErrUnknownLine, http.StatusNotFound, "unknown_line"},
	{wizard.ErrValidationBlocked, http.StatusConflict, "validation_blocked"},
	{wizard.ErrWrongStep, http.StatusConflict, "wrong_step"},
	{wizard.ErrChangePending, http.StatusConflict, "change_pending"},
	{wizard.ErrNoPendingChange, http.StatusConflict, "no_pending_change"},
	{wizard.ErrSubmitting, http.StatusConflict, "submitting"},
	{wizard.ErrMenuMismatch, http.StatusConflict, "menu_mismatch"},
	{wizard.ErrUnknownOption, http.StatusBadRequest, "unknown_option"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{catalog.ErrFetchFailed, http.StatusBadGateway, "catalog_unavailable"},
	{ordergrpc.ErrSubmissionFailed, http.StatusBadGateway, "submission_failed"},
	{gobreaker.ErrOpenState, http.StatusServiceUnavailable, "order_service_unavailable"},
	{gobreaker.ErrTooManyRequests, http.StatusServiceUnavailable, "order_service_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{actor.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
}

func classify(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	switch status.Code(err) {
	case codes.NotFound:
		return http.StatusNotFound, "order_not_found"
	case codes.InvalidArgument:
		return http.StatusBadRequest, "bad_request"
	case codes.FailedPrecondition, codes.Unavailable:
		return http.StatusServiceUnavailable, "order_service_unavailable"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func (g *Gateway) fail(c *gin.Context, err error, snap *session.Snapshot) {
	status, code := classify(err)
	_ = c.Error(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}
	if snap != nil && snap.ID != "" {
		resp.Session = snap
	}
	c.AbortWithStatusJSON(status, resp)
}

func (g *Gateway) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
}
