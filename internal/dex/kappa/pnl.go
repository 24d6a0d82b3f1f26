// =============================
// File: internal/dex/kappa/pnl.go
// =============================
package kappa

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/kappa-sdk/internal/dex/model"
)

// SuiDecimals is the precision of MIST.
const SuiDecimals = 9

func toSui(mist uint64) float64 {
	return decimal.NewFromUint64(mist).Shift(-SuiDecimals).InexactFloat64()
}

// CalculatePnL compares selling tokenAmount now against the fee-adjusted
// cost of initialInvestment MIST. Slippage is not modelled. With a zero
// cost basis PnLPercentage is 0 and NetPnL carries the gain.
func CalculatePnL(reserves CurveState, tokenAmount, initialInvestment, feeBps uint64) model.PnLResult {
	buyFee := decimal.Zero
	if validFee(feeBps) {
		buyFee = floorDiv(decimal.NewFromUint64(initialInvestment).Mul(decimal.NewFromUint64(feeBps)), decimal.NewFromInt(BpsDenominator))
	}
	costBasis := initialInvestment - toUint64(buyFee)
	sellEstimate := QuoteSell(reserves, tokenAmount, feeBps)

	cost := toSui(costBasis)
	estimate := toSui(sellEstimate)
	net := estimate - cost

	pct := 0.0
	if cost > 0 {
		pct = net / cost * 100
	}

	return model.PnLResult{
		InitialInvestment: cost,
		SellEstimate:      estimate,
		NetPnL:            net,
		PnLPercentage:     pct,
	}
}

// CalculatePnL prices a position against the live curve.
func (t *Trader) CalculatePnL(ctx context.Context, curveID string, tokenAmount, initialInvestment uint64) (*model.PnLResult, error) {
	state, err := t.CurveState(ctx, curveID)
	if err != nil {
		return nil, err
	}
	res := CalculatePnL(state, tokenAmount, initialInvestment, t.factory.FeeBps)

	t.logger.Debug("PnL calculation completed",
		zap.Uint64("token_amount", tokenAmount),
		zap.Uint64("initial_investment", initialInvestment),
		zap.Float64("cost_basis", res.InitialInvestment),
		zap.Float64("sell_estimate", res.SellEstimate),
		zap.Float64("net_pnl", res.NetPnL),
		zap.Float64("pnl_percentage", res.PnLPercentage))
	return &res, nil
}

// EstimatePosition values owner's whole balance of coinType at the live
// curve.
func (t *Trader) EstimatePosition(ctx context.Context, owner, coinType, curveID string) (*model.TokenEstimate, error) {
	if err := ValidateCoinType(coinType); err != nil {
		return nil, err
	}
	bal, err := t.client.GetBalance(ctx, owner, coinType)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	meta, err := t.fetchMetadata(ctx, coinType)
	if err != nil {
		return nil, err
	}
	state, err := t.CurveState(ctx, curveID)
	if err != nil {
		return nil, err
	}

	value := QuoteSell(state, bal.TotalBalance, t.factory.FeeBps)
	return &model.TokenEstimate{
		CoinType:       coinType,
		TokenBalance:   bal.TotalBalance,
		TokenPrice:     SpotPrice(state, SuiDecimals, int32(meta.Decimals)).InexactFloat64(),
		EstimatedValue: value,
		HumanBalance:   decimal.NewFromUint64(bal.TotalBalance).Shift(-int32(meta.Decimals)).InexactFloat64(),
		HumanEstimated: toSui(value),
		TokenPrecision: meta.Decimals,
	}, nil
}

// SellPercent sells percent (0, 100] of the sender's balance. req.Amount
// is ignored.
func (t *Trader) SellPercent(ctx context.Context, req TradeRequest, percent float64) *TradeResult {
	if percent <= 0 || percent > 100 || math.IsNaN(percent) {
		return failure(fmt.Errorf("%w: percent to sell must be in (0, 100]", ErrInvalidIntent))
	}
	sender, err := senderOf(req.Credential)
	if err != nil {
		return failure(err)
	}
	coinType, err := req.Token.Resolve()
	if err != nil {
		return failure(err)
	}

	bal, err := t.client.GetBalance(ctx, sender, coinType)
	if err != nil {
		return failure(fmt.Errorf("get balance: %w", err))
	}
	if bal == nil || bal.TotalBalance == 0 {
		return failure(fmt.Errorf("%w: %s", ErrNoSpendableInput, coinType))
	}

	amount := decimal.NewFromUint64(bal.TotalBalance).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Floor()
	req.Amount = toUint64(amount)
	req.Token = TokenRef{CoinType: coinType}

	t.logger.Info("Selling tokens",
		zap.String("coin_type", coinType),
		zap.Uint64("total_balance", bal.TotalBalance),
		zap.Float64("percent", percent),
		zap.Uint64("tokens_to_sell", req.Amount))

	return t.Sell(ctx, req)
}
