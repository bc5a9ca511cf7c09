package http

import (
	"context"
	"net/http"

	"github.com/gurmukh6912/token-entry/internal/app"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

type Wallet interface {
	Balance(ctx context.Context, account domain.Account) (domain.Amount, error)
	Deposit(ctx context.Context, in app.DepositInput) error
}

func HandleGetWallet(svc Wallet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := pathAccount(w, r, "account")
		if !ok {
			return
		}
		balance, err := svc.Balance(r.Context(), account)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, walletResponse{Account: account, Balance: balance})
	}
}

// HandleDeposit credits an account from the external funding rail.
func HandleDeposit(svc Wallet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := pathAccount(w, r, "account")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req depositRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		err := svc.Deposit(r.Context(), app.DepositInput{
			Caller:  caller,
			Account: account,
			Amount:  req.Amount,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		balance, err := svc.Balance(r.Context(), account)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, walletResponse{Account: account, Balance: balance})
	}
}

type depositRequest struct {
	Amount domain.Amount `json:"amount"`
}

type walletResponse struct {
	Account domain.Account `json:"account"`
	Balance domain.Amount  `json:"balance"`
}
