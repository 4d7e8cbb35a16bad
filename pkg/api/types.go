package api

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
)

// API response types for REST endpoints and WebSocket messages.
// Quantities, prices and balances are decimals encoded as JSON strings.

// ==============================
// REST Response Types
// ==============================

// AccountInfo is one venue's balances plus a summary of its book
type AccountInfo struct {
	AccountID int              `json:"accountId"`
	Money     decimal.Decimal  `json:"money"`
	Asset     decimal.Decimal  `json:"asset"`
	BestBid   *decimal.Decimal `json:"bestBid"` // null when the book has no bids
	BestAsk   *decimal.Decimal `json:"bestAsk"`
	BidDepth  decimal.Decimal  `json:"bidDepth"` // total resting bid quantity
	AskDepth  decimal.Decimal  `json:"askDepth"`
	Bids      int              `json:"bids"` // resting order count
	Asks      int              `json:"asks"`
}

// OrderbookSnapshot is an account's book aggregated into price levels
type OrderbookSnapshot struct {
	AccountID int          `json:"accountId"`
	Bids      []PriceLevel `json:"bids"`    // Sorted high to low
	Asks      []PriceLevel `json:"asks"`    // Sorted low to high
	AcqTime   int64        `json:"acqTime"` // Unix milliseconds, venue acquisition time
}

// PriceLevel represents [price, size] tuple
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Orders int             `json:"orders"`
}

// AllocationResponse is returned by POST /buy and /sell
type AllocationResponse struct {
	Side         string                `json:"side"` // "buy" or "sell"
	Requested    decimal.Decimal       `json:"requested"`
	Filled       decimal.Decimal       `json:"filled"`
	Unfilled     decimal.Decimal       `json:"unfilled"`
	Notional     decimal.Decimal       `json:"notional"`
	AveragePrice decimal.Decimal       `json:"averagePrice"`
	Digest       string                `json:"digest"`
	Fills        []allocation.FillView `json:"fills"`
}

// NewAllocationResponse flattens a result for JSON output
func NewAllocationResponse(res allocation.Result) AllocationResponse {
	return AllocationResponse{
		Side:         res.Side.String(),
		Requested:    res.Requested,
		Filled:       res.Filled,
		Unfilled:     res.Unfilled,
		Notional:     res.Notional,
		AveragePrice: res.AveragePrice(),
		Digest:       res.Digest,
		Fills:        allocation.Views(res.Fills),
	}
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["fills"]
}

// WSAck confirms a subscription change
type WSAck struct {
	Type     string   `json:"type"` // "subscribed" or "unsubscribed"
	Channels []string `json:"channels"`
}

// FillsUpdate is broadcast on the fills channel after every allocation
type FillsUpdate struct {
	Type string `json:"type"` // "fills"
	AllocationResponse
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}

// ==============================
// REST Request Types
// ==============================

// AllocationRequest is the payload for POST /api/v1/buy and /sell
type AllocationRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
}

// BalancesRequest is the payload for PUT /api/v1/balances and
// PUT /api/v1/accounts/{id}/balances
type BalancesRequest struct {
	Money *decimal.Decimal `json:"money"`
	Asset *decimal.Decimal `json:"asset"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
