package service

import (
	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

func validateWith[T any](v *validation.Validator) func(*T) error {
	if v == nil {
		return nil
	}
	return func(entity *T) error {
		return v.Validate(entity)
	}
}

func newProductRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.Product] {
	return sync.NewRepository(c, sync.Definition[domain.Product]{
		Collection: domain.CollectionProducts,
		Key:        (*domain.Product).Key,
		Validate:   validateWith[domain.Product](v),
	})
}

func newBrandRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.Brand] {
	return sync.NewRepository(c, sync.Definition[domain.Brand]{
		Collection: domain.CollectionBrands,
		Key:        (*domain.Brand).Key,
		Validate:   validateWith[domain.Brand](v),
	})
}

func newReviewRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.Review] {
	return sync.NewRepository(c, sync.Definition[domain.Review]{
		Collection: domain.CollectionReviews,
		Key:        (*domain.Review).Key,
		Validate:   validateWith[domain.Review](v),
	})
}

func newMeasurementRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.Measurement] {
	return sync.NewRepository(c, sync.Definition[domain.Measurement]{
		Collection: domain.CollectionMeasurements,
		Key:        (*domain.Measurement).Key,
		Validate:   validateWith[domain.Measurement](v),
	})
}

func newProfileRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.UserProfile] {
	return sync.NewRepository(c, sync.Definition[domain.UserProfile]{
		Collection: domain.CollectionProfiles,
		Key:        (*domain.UserProfile).Key,
		Validate:   validateWith[domain.UserProfile](v),
	})
}

func newChatRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.ChatHistory] {
	return sync.NewRepository(c, sync.Definition[domain.ChatHistory]{
		Collection: domain.CollectionChatHistory,
		Key:        (*domain.ChatHistory).Key,
		Validate:   validateWith[domain.ChatHistory](v),
	})
}

func newCartRepository(c *sync.Coordinator, v *validation.Validator) *sync.Repository[domain.Cart] {
	return sync.NewRepository(c, sync.Definition[domain.Cart]{
		Collection: domain.CollectionCarts,
		Key:        (*domain.Cart).Key,
		Validate:   validateWith[domain.Cart](v),
		LocalOnly:  true,
	})
}
