// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import "time"

// List is the wire shape of a shopping list as the backend reports it.
type List struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	TotalItems   int        `json:"totalItems"`
	CheckedItems int        `json:"checkedItems"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Product is the wire shape of a catalog product. The backend reports the
// display name under "nombre".
type Product struct {
	ID           int64  `json:"id"`
	Nombre       string `json:"nombre"`
	OriginalName string `json:"originalName,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	TagID        string `json:"tagId,omitempty"`
	Category     string `json:"category,omitempty"`
	NFC          bool   `json:"nfc"`
	Favorite     bool   `json:"favorite"`
}

// Item is the wire shape of a list item. List-detail responses nest a Product
// sub-object per item; flat responses carry the product fields inline. The
// store's adapter normalizes both shapes to the flat form.
type Item struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"productId,omitempty"`
	Name      string     `json:"name,omitempty"`
	Emoji     string     `json:"emoji,omitempty"`
	Category  string     `json:"category,omitempty"`
	Quantity  *float64   `json:"quantity,omitempty"`
	IsChecked bool       `json:"isChecked"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	SortOrder int        `json:"sortOrder"`
	LastPrice *float64   `json:"lastPrice,omitempty"`
	PriceDate *time.Time `json:"priceDate,omitempty"`
	Product   *Product   `json:"product,omitempty"`
}

// Category is one group within a list-detail response.
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// ListDetail is the list-detail response: the list plus its items nested under
// categories.
type ListDetail struct {
	List
	Categories []Category `json:"categories"`
}

// Items flattens the nested categories into a single item slice, preserving
// category order.
func (d *ListDetail) Items() []Item {
	var items []Item
	for _, cat := range d.Categories {
		items = append(items, cat.Items...)
	}
	return items
}

// FavoritesResponse wraps the favorites listing.
type FavoritesResponse struct {
	Favorites []Product `json:"favorites"`
}
