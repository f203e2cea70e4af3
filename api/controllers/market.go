package controllers

import (
	"net/http"

	"github.com/starlightdeck/careon/api/responses"
	"github.com/starlightdeck/careon/api/validators"
	"github.com/starlightdeck/careon/internal/cashier"
	"github.com/starlightdeck/careon/pkg/logger"
)

type purchaseRequest struct {
	Package string `json:"package" validate:"required,max=32"`
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
	By   string `json:"by" validate:"max=64"`
}

const defaultRedeemer = "web"

// MarketPackages lists the mock bundles with their exchange rate and bonus.
func MarketPackages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, cashier.Listings())
	}
}

// MarketPurchase credits a mock package purchase to the bank.
func MarketPurchase(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		purchase, err := svc.Purchase(r.Context(), body.Package)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchase)
	}
}

// RedeemCode consumes a deposit code and credits its net value.
func RedeemCode(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body redeemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		by := validators.SanitizeString(body.By, 64)
		if by == "" {
			by = defaultRedeemer
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithActor(ctx, by)
		}
		deposit, err := svc.RedeemCode(ctx, body.Code, by)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deposit)
	}
}
