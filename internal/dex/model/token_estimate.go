// internal/dex/model/token_estimate.go
package model

// TokenEstimate представляет оценку стоимости позиции в SUI
type TokenEstimate struct {
	// CoinType полный Move-тип токена
	CoinType string

	// TokenBalance баланс токена в натуральных единицах
	TokenBalance uint64

	// TokenPrice спот-цена одного токена в SUI
	TokenPrice float64

	// EstimatedValue выручка от продажи всего баланса в MIST
	EstimatedValue uint64

	// HumanBalance баланс токена в человекочитаемом формате
	HumanBalance float64

	// HumanEstimated оценочная стоимость в SUI
	HumanEstimated float64

	// TokenPrecision точность токена
	TokenPrecision uint8
}
