package controllers

import (
	"net/http"

	"github.com/starlightdeck/careon/api/responses"
	"github.com/starlightdeck/careon/api/validators"
	"github.com/starlightdeck/careon/internal/bank"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
)

var (
	historyWindow = validators.Window{Default: 25, Max: 200}
	phraseWindow  = validators.Window{Default: 10, Max: 100}
	eventWindow   = validators.Window{Default: 50, Max: 200}
)

type donatePhraseRequest struct {
	Phrase string `json:"phrase" validate:"required,max=200"`
	User   string `json:"user" validate:"max=64"`
}

func BankSummary(svc bank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// BankHistory returns the newest transactions, oldest first.
func BankHistory(svc bank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keep, err := validators.ParseWindow(r, "keep", historyWindow)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.Recent(r.Context(), keep)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, history, len(history), keep)
	}
}

func BankPhrases(svc bank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseWindow(r, "limit", phraseWindow)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		phrases, err := svc.Phrases(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, phrases, len(phrases), limit)
	}
}

// DonatePhrase spends the phrase cost into the network fund and records the phrase.
func DonatePhrase(svc bank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body donatePhraseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		donation, err := svc.DonatePhrase(r.Context(), body.Phrase, body.User)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !donation.Accepted {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "not enough Careon to share a phrase").
				WithDetails(map[string]any{"balance": donation.Balance, "cost": donation.Cost}))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donation)
	}
}
