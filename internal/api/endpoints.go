package api

import (
	"context"
	"net/url"
	"strconv"
)

// ListCoins returns all listed coins.
func (c *Client) ListCoins(ctx context.Context) ([]Coin, error) {
	body, err := c.get(ctx, "list_coins", "/v1/coins/", nil)
	if err != nil {
		return nil, err
	}
	var coins []Coin
	if err := decodeList(body, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Trending returns one page of trending coins.
func (c *Client) Trending(ctx context.Context, page, size int) ([]Coin, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	body, err := c.get(ctx, "trending", "/v1/coins/trending", q)
	if err != nil {
		return nil, err
	}
	var coins []Coin
	if err := decodeList(body, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// Search finds coins by name or symbol.
func (c *Client) Search(ctx context.Context, nameOrSymbol string) ([]Coin, error) {
	q := url.Values{}
	q.Set("nameOrSymbol", nameOrSymbol)
	body, err := c.get(ctx, "search", "/v1/coins", q)
	if err != nil {
		return nil, err
	}
	var coins []Coin
	if err := decodeList(body, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// SearchByAddress finds coins by their on-chain address.
func (c *Client) SearchByAddress(ctx context.Context, address string) ([]Coin, error) {
	q := url.Values{}
	q.Set("address", address)
	body, err := c.get(ctx, "search_address", "/v1/coins", q)
	if err != nil {
		return nil, err
	}
	var coins []Coin
	if err := decodeList(body, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetCoin returns a single coin including its factory and curve addresses.
func (c *Client) GetCoin(ctx context.Context, address string) (*Coin, error) {
	body, err := c.get(ctx, "get_coin", "/v1/coins/"+url.PathEscape(address), nil)
	if err != nil {
		return nil, err
	}
	var coin Coin
	if err := decodeOne(body, &coin); err != nil {
		return nil, err
	}
	return &coin, nil
}

// ListFactories returns every known deployment.
func (c *Client) ListFactories(ctx context.Context) ([]FactoryRecord, error) {
	body, err := c.get(ctx, "list_factories", "/v1/coins/factories", nil)
	if err != nil {
		return nil, err
	}
	var records []FactoryRecord
	if err := decodeList(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetFactory returns the record for one factory address.
func (c *Client) GetFactory(ctx context.Context, address string) (*FactoryRecord, error) {
	body, err := c.get(ctx, "get_factory", "/v1/coins/factories/"+url.PathEscape(address), nil)
	if err != nil {
		return nil, err
	}
	var rec FactoryRecord
	if err := decodeOne(body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
