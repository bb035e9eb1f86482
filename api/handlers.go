package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/record"
	"github.com/xraph/allowance/types"
)

type grantRequest struct {
	Spender   string  `json:"spender"`
	Action    string  `json:"action"`
	Amount    *uint64 `json:"amount" binding:"required"`
	ExpiresAt *uint64 `json:"expires_at"`
}

type consumeRequest struct {
	Owner  string  `json:"owner"`
	Action string  `json:"action"`
	Amount *uint64 `json:"amount" binding:"required"`
}

// modifyRequest names the allowance by spender and action. Owner defaults
// to the caller.
type modifyRequest struct {
	Owner     string  `json:"owner"`
	Spender   string  `json:"spender"`
	Action    string  `json:"action"`
	Amount    *uint64 `json:"amount" binding:"required"`
	ExpiresAt *uint64 `json:"expires_at"`
}

type revokeRequest struct {
	Spender string `json:"spender"`
	Action  string `json:"action"`
}

// allowanceView is the JSON form of a stored record.
type allowanceView struct {
	ID        string  `json:"id"`
	Owner     string  `json:"owner"`
	Spender   string  `json:"spender"`
	Action    string  `json:"action"`
	Remaining uint64  `json:"remaining"`
	Usable    uint64  `json:"usable"`
	ExpiresAt *uint64 `json:"expires_at,omitempty"`
	Expired   bool    `json:"expired"`
}

func HandleGrantPOST(l *allowance.Ledger, caller CallerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, authed := caller(c)
		if !authed {
			unauthenticated(c)
			return
		}
		var req grantRequest
		if !bind(c, &req) {
			return
		}
		err := l.Grant(c.Request.Context(), who,
			types.Principal(req.Spender), types.Action(req.Action),
			*req.Amount, heightPtr(req.ExpiresAt),
		)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c)
	}
}

func HandleConsumePOST(l *allowance.Ledger, caller CallerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, authed := caller(c)
		if !authed {
			unauthenticated(c)
			return
		}
		var req consumeRequest
		if !bind(c, &req) {
			return
		}
		err := l.Consume(c.Request.Context(), who,
			types.Principal(req.Owner), types.Action(req.Action), *req.Amount,
		)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c)
	}
}

func HandleModifyPOST(l *allowance.Ledger, caller CallerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, authed := caller(c)
		if !authed {
			unauthenticated(c)
			return
		}
		var req modifyRequest
		if !bind(c, &req) {
			return
		}
		owner := who
		if req.Owner != "" {
			owner = types.Principal(req.Owner)
		}
		key := record.NewKey(owner, types.Principal(req.Spender), types.Action(req.Action))
		if err := l.Modify(c.Request.Context(), who, key, *req.Amount, heightPtr(req.ExpiresAt)); err != nil {
			fail(c, err)
			return
		}
		ok(c)
	}
}

func HandleRevokePOST(l *allowance.Ledger, caller CallerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, authed := caller(c)
		if !authed {
			unauthenticated(c)
			return
		}
		var req revokeRequest
		if !bind(c, &req) {
			return
		}
		err := l.Revoke(c.Request.Context(), who, types.Principal(req.Spender), types.Action(req.Action))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c)
	}
}

// HandleAllowanceGET is a read-only lookup; it needs no caller identity.
func HandleAllowanceGET(l *allowance.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		owner := types.Principal(c.Param("owner"))
		spender := types.Principal(c.Param("spender"))
		action := types.Action(c.Param("action"))

		a, err := l.Allowance(ctx, owner, spender, action)
		if err != nil {
			fail(c, err)
			return
		}
		h, err := l.CurrentHeight(ctx)
		if err != nil {
			fail(c, err)
			return
		}

		view := allowanceView{
			ID:        a.ID.String(),
			Owner:     string(a.Owner),
			Spender:   string(a.Spender),
			Action:    string(a.Action),
			Remaining: a.Remaining,
			Usable:    a.Usable(h),
			Expired:   a.Expired(h),
		}
		if a.ExpiresAt != nil {
			exp := uint64(*a.ExpiresAt)
			view.ExpiresAt = &exp
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "allowance": view})
	}
}
