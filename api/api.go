// Package api exposes the allowance ledger over HTTP using gin.
//
// Every mutating endpoint answers {"ok":true} on success or
// {"err":<code>,"error":"<message>"} with a matching HTTP status. The
// caller principal is resolved by a CallerFunc supplied by the identity
// layer in front of the ledger.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/types"
)

// DefaultCallerHeader is read by HeaderCaller when no header is given.
const DefaultCallerHeader = "X-Allowance-Caller"

// CallerFunc resolves the authenticated principal of a request. It
// returns false when the request carries no identity.
type CallerFunc func(c *gin.Context) (types.Principal, bool)

// HeaderCaller reads the caller from a request header set by a trusted
// upstream authenticator.
func HeaderCaller(header string) CallerFunc {
	if header == "" {
		header = DefaultCallerHeader
	}
	return func(c *gin.Context) (types.Principal, bool) {
		v := strings.TrimSpace(c.GetHeader(header))
		if v == "" {
			return "", false
		}
		return types.Principal(v), true
	}
}

// Register mounts the call surface on r.
func Register(r gin.IRouter, l *allowance.Ledger, caller CallerFunc) {
	r.POST("/grant-allowance", HandleGrantPOST(l, caller))
	r.POST("/consume-allowance", HandleConsumePOST(l, caller))
	r.POST("/modify-allowance", HandleModifyPOST(l, caller))
	r.POST("/revoke-allowance", HandleRevokePOST(l, caller))
	r.GET("/allowances/:owner/:spender/:action", HandleAllowanceGET(l))
}

// StatusOf maps a ledger error code to an HTTP status.
func StatusOf(code allowance.Code) int {
	switch code {
	case allowance.CodeUnauthorized:
		return http.StatusForbidden
	case allowance.CodeNoSuchAllowance:
		return http.StatusNotFound
	case allowance.CodeAllowanceExpired, allowance.CodeInsufficientAllowance:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail writes err(code) for ledger denials and a bare 500 otherwise.
func fail(c *gin.Context, err error) {
	code, known := allowance.CodeOf(err)
	if !known {
		_ = c.Error(err) //nolint:errcheck // attached for upstream logging middleware
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(StatusOf(code), gin.H{"err": uint32(code), "error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid_request")
		return false
	}
	return true
}

func heightPtr(h *uint64) *types.Height {
	if h == nil {
		return nil
	}
	return types.HeightPtr(types.Height(*h))
}
