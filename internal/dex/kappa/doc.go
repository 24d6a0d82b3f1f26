// Package kappa prices and builds trades against Kappa bonding curves on
// Sui.
//
// Pricing is a constant-product curve over virtual reserves. Buys take the
// protocol fee from the SUI input before the swap, sells take it from the
// SUI output after the swap. All arithmetic is exact integer math with
// floor on forward quotes and ceil on inverse quotes, so a quote matches
// what the bonding contract computes on chain.
//
// Trader turns a TradeRequest into a programmable transaction calling the
// factory's buy or sell_ entry point and submits it with the caller's
// credential. Trader never returns an error or panics out of Buy or Sell;
// callers branch on TradeResult.Success.
package kappa
