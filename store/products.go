// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/pocketlist/cartsync/model"
)

const productSearchLimit = 50

// SearchProducts searches the catalog. Online results are cached in bulk so
// later searches work offline; offline (or after a remote failure, which is
// surfaced) the local cache serves the query.
func (s *Store) SearchProducts(ctx context.Context, query string) []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	if s.online() {
		apiProducts, err := s.remote.SearchProducts(ctx, query)
		if err == nil {
			products := productsFromAPI(apiProducts)
			if err := s.local.CacheProducts(ctx, products); err != nil {
				s.logger.Warn("failed to cache search results", "error", err)
			}
			return products
		}
		s.recordError(err, "Failed to search products")
	}

	cached, err := s.local.SearchCachedProducts(ctx, query, productSearchLimit)
	if err != nil {
		s.recordError(err, "Failed to search products")
		return nil
	}
	return cached
}

// FavoritesResult reports the outcome of AddFavoritesToList.
type FavoritesResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// AddFavoritesToList adds the user's favorite products to a list, skipping
// products already present (matched by product id). An empty favorites set
// yields a zero result without error. Unlike the other mutations this action
// propagates its failure to the caller after recording it.
func (s *Store) AddFavoritesToList(ctx context.Context, listLocalID string) (FavoritesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginAction()
	defer s.endAction()

	var result FavoritesResult

	favorites, err := s.loadFavoritesLocked(ctx)
	if err != nil {
		s.recordError(err, "Failed to add favorites")
		return result, err
	}
	if len(favorites) == 0 {
		return result, nil
	}

	items, err := s.local.ItemsForList(ctx, listLocalID)
	if err != nil {
		s.recordError(err, "Failed to add favorites")
		return result, err
	}
	present := make(map[int64]bool, len(items))
	for _, it := range items {
		present[it.ProductID] = true
	}

	for _, fav := range favorites {
		if present[fav.ID] {
			result.Skipped++
			continue
		}
		if _, err := s.addItemLocked(ctx, listLocalID, fav, nil); err != nil {
			s.recordError(err, "Failed to add favorites")
			return result, err
		}
		result.Added++
	}

	s.drainIfOnline(ctx)
	return result, nil
}

// loadFavoritesLocked fetches favorites from the remote service when online,
// otherwise from the favorite-flagged product cache.
func (s *Store) loadFavoritesLocked(ctx context.Context) ([]model.Product, error) {
	if s.online() {
		apiFavorites, err := s.remote.GetFavorites(ctx)
		if err != nil {
			return nil, err
		}
		favorites := productsFromAPI(apiFavorites)
		for i := range favorites {
			favorites[i].Favorite = true
		}
		if err := s.local.CacheProducts(ctx, favorites); err != nil {
			s.logger.Warn("failed to cache favorites", "error", err)
		}
		return favorites, nil
	}
	return s.local.FavoriteProducts(ctx, 0)
}
