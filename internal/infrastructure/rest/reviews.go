package rest

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const reviewsPath = "/reviews"

type ReviewClient struct {
	c *Client
}

func NewReviewClient(c *Client) *ReviewClient {
	return &ReviewClient{c: c}
}

var _ ports.ReviewAPI = (*ReviewClient)(nil)

func (r *ReviewClient) list(ctx context.Context, op, path string) ([]domain.Review, error) {
	var out []domain.Review
	if err := r.c.get(ctx, op, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReviewClient) ForProvider(ctx context.Context, providerID domain.ID) ([]domain.Review, error) {
	return r.list(ctx, "reviews.provider", idPath(reviewsPath+"/provider", providerID))
}

func (r *ReviewClient) ForService(ctx context.Context, serviceID domain.ID) ([]domain.Review, error) {
	return r.list(ctx, "reviews.service", idPath(reviewsPath+"/service", serviceID))
}

func (r *ReviewClient) ForUser(ctx context.Context) ([]domain.Review, error) {
	return r.list(ctx, "reviews.user", reviewsPath+"/user")
}

func (r *ReviewClient) Submit(ctx context.Context, review domain.Review) (*domain.Review, error) {
	var out domain.Review
	if err := r.c.post(ctx, "reviews.submit", reviewsPath, review, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ReviewClient) Update(ctx context.Context, id domain.ID, review domain.Review) (*domain.Review, error) {
	var out domain.Review
	if err := r.c.put(ctx, "reviews.update", idPath(reviewsPath, id), review, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ReviewClient) Delete(ctx context.Context, id domain.ID) error {
	return r.c.delete(ctx, "reviews.delete", idPath(reviewsPath, id))
}
