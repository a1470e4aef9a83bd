package domain

import (
	"fmt"
	"strings"
	"time"
)

// ShopMode is the direction goods and money flow through a shop
type ShopMode string

const (
	// ShopBuy: a player pays the owner and receives goods from the shop stock
	ShopBuy ShopMode = "BUY"
	// ShopSell: the owner pays a player and receives the player's goods into stock
	ShopSell ShopMode = "SELL"
)

// ParseShopMode accepts BUY or SELL in any case
func ParseShopMode(s string) (ShopMode, error) {
	switch ShopMode(strings.ToUpper(strings.TrimSpace(s))) {
	case ShopBuy:
		return ShopBuy, nil
	case ShopSell:
		return ShopSell, nil
	}
	return "", fmt.Errorf("unknown shop mode %q", s)
}

// Shop Model
type Shop struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                          // Primary key
	OwnerID   string    `gorm:"size:64;not null;index" json:"owner_id"`        // Owner account
	Location  string    `gorm:"size:128;uniqueIndex;not null" json:"location"` // Sign location key
	Mode      ShopMode  `gorm:"size:4;not null" json:"mode"`                   // BUY or SELL
	Price     int64     `gorm:"not null" json:"price"`                         // Price per trade
	ItemID    string    `gorm:"size:128;not null" json:"item_id"`              // Goods item tag
	Quantity  int64     `gorm:"not null;default:1" json:"quantity"`            // Goods per trade
	Template  string    `gorm:"type:text" json:"template,omitempty"`           // Optional JSON item payload
	CreatedAt time.Time `json:"created_at"`                                    // Creation time
}
