// Package domain defines the core types shared across the sniper: listings,
// items, marketplace parties, and the interfaces implemented by the platform,
// cache, and store packages.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ListingStatus is the marketplace-assigned lifecycle status of a listing.
type ListingStatus string

const (
	StatusOpen           ListingStatus = "OPEN"
	StatusAsked          ListingStatus = "ASKED"
	StatusAnswered       ListingStatus = "ANSWERED"
	StatusSent           ListingStatus = "SENT"
	StatusReceived       ListingStatus = "RECEIVED"
	StatusCanceledSystem ListingStatus = "CANCELED-SYSTEM"
	StatusFailed         ListingStatus = "FAILED"
)

// Terminal reports whether a listing in this status is done and can be
// dropped from tracking.
func (s ListingStatus) Terminal() bool {
	switch s {
	case StatusReceived, StatusCanceledSystem, StatusFailed:
		return true
	}
	return false
}

// Sticker is a decorative attachment applied to an item.
type Sticker struct {
	Slot int    `json:"slot"`
	Name string `json:"name"`
}

// AssetRef identifies a single Steam inventory asset.
type AssetRef struct {
	AppID     string
	ContextID string
	AssetID   string
}

// Item is the item attached to a listing. Price is the marketplace reference
// price and AskPrice the seller's asking price, both in coin cents.
type Item struct {
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	AskPrice   int64     `json:"askPrice"`
	ExternalID string    `json:"externalId"`
	ImageURL   string    `json:"imageUrl"`
	Float      float64   `json:"float,omitempty"`
	Stickers   []Sticker `json:"stickers,omitempty"`
}

// Asset decomposes the item's composite external ID ("appid|contextid|assetid")
// into an AssetRef.
func (i Item) Asset() (AssetRef, error) {
	parts := strings.Split(i.ExternalID, "|")
	if len(parts) != 3 {
		return AssetRef{}, fmt.Errorf("domain: malformed external id %q", i.ExternalID)
	}
	return AssetRef{AppID: parts[0], ContextID: parts[1], AssetID: parts[2]}, nil
}

// Markup is the ask price divided by the reference price. Returns 0 when the
// reference price is unknown.
func (i Item) Markup() float64 {
	if i.Price <= 0 {
		return 0
	}
	return float64(i.AskPrice) / float64(i.Price)
}

// Party is one side of a listing (seller or buyer).
type Party struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	SteamID string `json:"steamId"`
}

// Listing is a marketplace sell offer for exactly one item.
type Listing struct {
	ID             int64         `json:"id"`
	Status         ListingStatus `json:"status"`
	Item           Item          `json:"item"`
	Seller         *Party        `json:"seller,omitempty"`
	BuyerTradelink string        `json:"buyerTradelink,omitempty"`
	StepExpiresAt  time.Time     `json:"stepExpiresAt,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// String renders a listing the way log lines expect it: id, name, prices,
// and markup on one line.
func (l Listing) String() string {
	return fmt.Sprintf("id=%d name=%q price=%d ask=%d markup=%.3f",
		l.ID, l.Item.Name, l.Item.Price, l.Item.AskPrice, l.Item.Markup())
}

// Role distinguishes which side of a listing we are on.
type Role int

const (
	RoleBuyer Role = iota
	RoleSeller
)

// RoleOf returns our role in the listing given our Steam ID. Every state
// machine transition branches on this instead of comparing IDs inline.
func RoleOf(l Listing, ourSteamID string) Role {
	if l.Seller != nil && l.Seller.SteamID == ourSteamID && ourSteamID != "" {
		return RoleSeller
	}
	return RoleBuyer
}

// Profile is the marketplace account profile. Balance is in coin cents.
type Profile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SteamID   string `json:"steamId"`
	Balance   int64  `json:"balance"`
	Role      string `json:"role"`
	KYCStatus string `json:"kycStatus"`
}

// InventoryItem is an item in our Steam inventory as reported by the
// marketplace inventory endpoint. Price is the site's valuation in coin cents.
type InventoryItem struct {
	Name       string  `json:"name"`
	ExternalID string  `json:"externalId"`
	ImageURL   string  `json:"imageUrl"`
	Price      int64   `json:"price"`
	IsAccepted bool    `json:"isAccepted"`
	IsTradable bool    `json:"isTradable"`
	Float      float64 `json:"float,omitempty"`
}

// NewListing is the payload for creating a sell listing.
type NewListing struct {
	ExternalID string `json:"externalId"`
	AskPrice   int64  `json:"askPrice"`
}

// StreamEvent is one decoded frame from the marketplace event stream.
type StreamEvent struct {
	Name    string
	Payload []byte
}

// TradeQueueEntry is one unit of seller-side fulfillment work, created when a
// listing we sell reaches ANSWERED.
type TradeQueueEntry struct {
	ListingID      int64
	ItemName       string
	AskPrice       int64
	BuyerTradelink string
	Asset          AssetRef
	StepExpiresAt  time.Time
}
