// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"time"

	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/remote"
)

// FlattenItem normalizes an API item to the flat shape. It recognizes two
// inputs: an already-flat item, which passes through unchanged, and an item
// carrying a nested product sub-object, whose fields are hoisted up
// (product.id, product.nombre, product.emoji, product.category). The function
// is idempotent: applying it to its own output is a no-op.
func FlattenItem(it remote.Item) remote.Item {
	if it.Product == nil {
		return it
	}
	p := it.Product
	it.ProductID = p.ID
	it.Name = p.Nombre
	if it.Emoji == "" {
		it.Emoji = p.Emoji
	}
	if it.Category == "" {
		it.Category = p.Category
	}
	it.Product = nil
	return it
}

// listFromAPI converts a wire list into the local shape. LocalID and sync
// metadata are left for the resolver to assign.
func listFromAPI(l remote.List) model.ShoppingList {
	return model.ShoppingList{
		ID:           l.ID,
		Name:         l.Name,
		Status:       listStatusFromAPI(l.Status),
		TotalItems:   l.TotalItems,
		CheckedItems: l.CheckedItems,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
		CompletedAt:  copyTime(l.CompletedAt),
	}
}

func listsFromAPI(ls []remote.List) []model.ShoppingList {
	out := make([]model.ShoppingList, len(ls))
	for i, l := range ls {
		out[i] = listFromAPI(l)
	}
	return out
}

// itemFromAPI flattens and converts a wire item. LocalID and sync metadata
// are left for the resolver.
func itemFromAPI(it remote.Item) model.ShoppingListItem {
	flat := FlattenItem(it)
	return model.ShoppingListItem{
		ID:        flat.ID,
		ProductID: flat.ProductID,
		Name:      flat.Name,
		Emoji:     flat.Emoji,
		Category:  flat.Category,
		Quantity:  copyFloat(flat.Quantity),
		IsChecked: flat.IsChecked,
		CheckedAt: copyTime(flat.CheckedAt),
		SortOrder: flat.SortOrder,
		LastPrice: copyFloat(flat.LastPrice),
		PriceDate: copyTime(flat.PriceDate),
	}
}

func itemsFromAPI(items []remote.Item) []model.ShoppingListItem {
	out := make([]model.ShoppingListItem, len(items))
	for i, it := range items {
		out[i] = itemFromAPI(it)
	}
	return out
}

// productFromAPI maps the wire product (display name under "nombre") to the
// cache shape.
func productFromAPI(p remote.Product) model.Product {
	return model.Product{
		ID:           p.ID,
		Name:         p.Nombre,
		OriginalName: p.OriginalName,
		Emoji:        p.Emoji,
		TagID:        p.TagID,
		Category:     p.Category,
		NFC:          p.NFC,
		Favorite:     p.Favorite,
	}
}

func productsFromAPI(ps []remote.Product) []model.Product {
	out := make([]model.Product, len(ps))
	for i, p := range ps {
		out[i] = productFromAPI(p)
	}
	return out
}

func listStatusFromAPI(s string) model.ListStatus {
	switch model.ListStatus(s) {
	case model.ListCompleted:
		return model.ListCompleted
	case model.ListArchived:
		return model.ListArchived
	default:
		return model.ListActive
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
