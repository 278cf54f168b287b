package models

import "time"

type ItemStatus string

const (
	ItemDraft   ItemStatus = "draft"
	ItemActive  ItemStatus = "active"
	ItemSold    ItemStatus = "sold"
	ItemRemoved ItemStatus = "removed"
)

type ItemCategory string

const (
	CategoryElectronics ItemCategory = "electronics"
	CategoryClothing    ItemCategory = "clothing"
	CategoryHome        ItemCategory = "home"
	CategoryBooks       ItemCategory = "books"
	CategorySports      ItemCategory = "sports"
	CategoryToys        ItemCategory = "toys"
	CategoryVehicles    ItemCategory = "vehicles"
	CategoryOther       ItemCategory = "other"
)

// Item is a marketplace listing. Images holds object-store keys.
type Item struct {
	ID          string       `bson:"_id" json:"id"`
	Title       string       `bson:"title" json:"title"`
	Description string       `bson:"description" json:"description"`
	Price       float64      `bson:"price" json:"price"`
	SellerID    string       `bson:"seller_id" json:"seller_id"`
	Category    ItemCategory `bson:"category" json:"category"`
	Status      ItemStatus   `bson:"status" json:"status"`
	Location    *string      `bson:"location" json:"location"`
	Images      []string     `bson:"images" json:"images"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at" json:"updated_at"`
}
