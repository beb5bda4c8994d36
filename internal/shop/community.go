package shop

import (
	"context"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// WishlistStatus values reported by AddToWishlist.
const (
	WishlistAdded  = "added"
	WishlistExists = "exists"
)

func (s *Service) AddToWishlist(ctx context.Context, id auth.Identity, productID int64) (string, error) {
	if err := requireUser(id); err != nil {
		return "", err
	}

	added, err := store.AddWishlistItem(ctx, s.db, id.UserID, productID)
	if err != nil {
		return "", err
	}
	if !added {
		return WishlistExists, nil
	}
	return WishlistAdded, nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, id auth.Identity, productID int64) error {
	if err := requireUser(id); err != nil {
		return err
	}
	return store.RemoveWishlistItem(ctx, s.db, id.UserID, productID)
}

func (s *Service) ListWishlist(ctx context.Context, id auth.Identity) ([]models.WishlistItem, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	return store.ListWishlist(ctx, s.db, id.UserID)
}

// AddReview records the caller's single review of an available product.
func (s *Service) AddReview(ctx context.Context, id auth.Identity, slug string, rating int, comment string) (*models.Review, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if err := models.ValidateRating(rating); err != nil {
		return nil, err
	}

	product, err := store.GetProductBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	return store.CreateReview(ctx, s.db, product.ID, id.UserID, rating, comment)
}

func (s *Service) ListProductReviews(ctx context.Context, slug string) ([]models.Review, error) {
	product, err := store.GetProductBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	return store.ListProductReviews(ctx, s.db, product.ID)
}

func (s *Service) ListReviews(ctx context.Context, page store.PageRequest) (*store.OffsetPage, error) {
	return store.ListReviews(ctx, s.db, page)
}
