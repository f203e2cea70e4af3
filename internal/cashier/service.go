// Package cashier composes the bank and deposit code ledgers: code deposits
// with the network cut, mock market purchases and community reward codes.
package cashier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starlightdeck/careon/internal/bank"
	"github.com/starlightdeck/careon/internal/deposits"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/pkg/config"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
)

const CommunityRewardNote = "community reward"

// Service defines the cross-document flows.
type Service interface {
	RedeemCode(ctx context.Context, code, redeemedBy string) (Deposit, error)
	Purchase(ctx context.Context, packageRef string) (Purchase, error)
	MintCommunityReward(ctx context.Context, admin string) (Reward, error)
}

// Deposit is the result of crediting a redeemed code.
type Deposit struct {
	Code    string `json:"code"`
	Gross   int64  `json:"gross"`
	Cut     int64  `json:"network_cut"`
	Net     int64  `json:"net"`
	Balance int64  `json:"balance"`
}

type Purchase struct {
	Package Package `json:"package"`
	Balance int64   `json:"balance"`
}

type Reward struct {
	Code        string `json:"code"`
	Value       int64  `json:"value"`
	NetworkFund int64  `json:"network_fund"`
}

type ServiceParams struct {
	Bank        bank.Service
	Codes       deposits.Service
	BankConfig  config.BankConfig
	CodesConfig config.CodesConfig
	Logger      *logger.Logger
}

type service struct {
	bank   bank.Service
	codes  deposits.Service
	bankc  config.BankConfig
	codesc config.CodesConfig
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Bank == nil {
		return nil, fmt.Errorf("bank service is required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("deposits service is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		bank:   params.Bank,
		codes:  params.Codes,
		bankc:  params.BankConfig,
		codesc: params.CodesConfig,
		logg:   params.Logger,
	}, nil
}

// RedeemCode consumes code and credits the bank in the same critical section.
// The code ledger is saved only after the bank save succeeds, so a failed
// bank write leaves the code redeemable.
func (s *service) RedeemCode(ctx context.Context, code, redeemedBy string) (Deposit, error) {
	var out Deposit
	_, err := s.codes.RedeemWith(ctx, code, redeemedBy, func(ctx context.Context, code string, value int64) error {
		cut := ledger.NetworkCut(value, s.codesc.NetworkCutPerBlock)
		b, err := s.bank.Update(ctx, func(b *ledger.Bank, now time.Time) error {
			net, err := b.Deposit(code, value, cut, now)
			if err != nil {
				return creditError(err, "credit deposit")
			}
			out = Deposit{Code: code, Gross: value, Cut: cut, Net: net}
			return nil
		})
		if err != nil {
			return err
		}
		out.Balance = b.Balance
		return nil
	})
	if err != nil {
		return Deposit{}, err
	}
	return out, nil
}

func (s *service) Purchase(ctx context.Context, packageRef string) (Purchase, error) {
	pkg, ok := FindPackage(packageRef)
	if !ok {
		return Purchase{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown market package").
			WithDetails(map[string]any{"package": packageRef})
	}
	b, err := s.bank.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		meta := map[string]any{
			"usd":     pkg.USD.StringFixed(2),
			"tokens":  pkg.Tokens,
			"package": pkg.ID,
		}
		note := fmt.Sprintf("Mock market purchase $%s", pkg.USD.String())
		if err := b.CreditPurchase(pkg.Tokens, note, meta, now); err != nil {
			return creditError(err, "credit purchase")
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"package": pkg.ID,
		"tokens":  pkg.Tokens,
	}), "mock market purchase credited")
	return Purchase{Package: pkg, Balance: b.Balance}, nil
}

// MintCommunityReward releases a reward code once the network fund reaches
// the community goal. The fund itself is left untouched.
func (s *service) MintCommunityReward(ctx context.Context, admin string) (Reward, error) {
	snapshot, err := s.bank.Snapshot(ctx)
	if err != nil {
		return Reward{}, err
	}
	if snapshot.NetworkFund < s.bankc.CommunityGoal {
		return Reward{}, pkgerrors.New(pkgerrors.CodeConflict, "community goal not reached").
			WithDetails(map[string]any{
				"network_fund":   snapshot.NetworkFund,
				"community_goal": s.bankc.CommunityGoal,
			})
	}
	code, err := s.codes.Mint(ctx, s.bankc.RewardCodeValue, admin, CommunityRewardNote)
	if err != nil {
		return Reward{}, err
	}
	return Reward{Code: code, Value: s.bankc.RewardCodeValue, NetworkFund: snapshot.NetworkFund}, nil
}

// creditError passes balance overflow through as-is so callers see a conflict.
func creditError(err error, msg string) error {
	if errors.Is(err, ledger.ErrBalanceOverflow) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
