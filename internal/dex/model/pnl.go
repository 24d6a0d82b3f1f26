// Package model internal/dex/model/pnl.go
package model

// PnLResult holds profit-and-loss data for a curve position, in whole SUI.
type PnLResult struct {
	InitialInvestment float64 // fee-adjusted cost basis
	SellEstimate      float64 // value if sold now (fee-adjusted)
	NetPnL            float64 // profit / loss
	PnLPercentage     float64 // NetPnL ÷ InitialInvestment x 100
}
