package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/starlightdeck/careon/api/middleware"
	"github.com/starlightdeck/careon/api/responses"
	"github.com/starlightdeck/careon/api/validators"
	"github.com/starlightdeck/careon/internal/bank"
	"github.com/starlightdeck/careon/internal/cashier"
	"github.com/starlightdeck/careon/internal/deposits"
	pkgAuth "github.com/starlightdeck/careon/pkg/auth"
	"github.com/starlightdeck/careon/pkg/config"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/security"
)

type adminSessionRequest struct {
	Password string `json:"password" validate:"required,max=256"`
	Operator string `json:"operator" validate:"max=64"`
}

type adminSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type mintCodeRequest struct {
	Value int64  `json:"value" validate:"gt=0,lte=1000000000"`
	Note  string `json:"note" validate:"max=120"`
}

type mintCodeResponse struct {
	Code  string `json:"code"`
	Value int64  `json:"value"`
}

type devtoolRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

type devtoolResponse struct {
	Code    string `json:"code"`
	Granted bool   `json:"granted"`
}

// AdminSession exchanges the admin password for a signed bearer token.
func AdminSession(cfg config.AdminConfig, logg *logger.Logger, clock func() time.Time) http.HandlerFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin access is not configured"))
			return
		}

		var body adminSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ok, err := security.VerifyPassword(body.Password, cfg.PasswordHash)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify admin password"))
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
			return
		}

		now := clock().UTC()
		operator := validators.SanitizeString(body.Operator, 64)
		token, err := pkgAuth.MintAdminToken(cfg, now, operator)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint admin token"))
			return
		}

		if logg != nil {
			logg.Info(logg.WithActor(r.Context(), operator), "admin session issued")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, adminSessionResponse{
			Token:     token,
			ExpiresAt: now.Add(cfg.SessionTTL()),
		})
	}
}

// AdminMintCode mints a deposit code attributed to the authenticated admin.
func AdminMintCode(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body mintCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := actorContext(r, logg)
		code, err := svc.Mint(ctx, body.Value, middleware.ActorFromContext(r.Context()), body.Note)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, mintCodeResponse{Code: code, Value: body.Value})
	}
}

// AdminCommunityReward mints the reward code once the network fund reaches the goal.
func AdminCommunityReward(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := actorContext(r, logg)
		reward, err := svc.MintCommunityReward(ctx, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reward)
	}
}

func AdminDevtool(svc bank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body devtoolRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := actorContext(r, logg)
		granted, err := svc.ApplyDevtool(ctx, body.Code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, devtoolResponse{Code: body.Code, Granted: granted})
	}
}

func AdminCodeEvents(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keep, err := validators.ParseWindow(r, "keep", eventWindow)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.RecentEvents(r.Context(), keep)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, events, len(events), keep)
	}
}

func AdminOutstandingCodes(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outstanding, err := svc.Outstanding(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outstanding)
	}
}

func actorContext(r *http.Request, logg *logger.Logger) context.Context {
	ctx := r.Context()
	if logg == nil {
		return ctx
	}
	return logg.WithActor(ctx, middleware.ActorFromContext(ctx))
}
