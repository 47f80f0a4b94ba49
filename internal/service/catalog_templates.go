package service

import (
	"github.com/shopspring/decimal"

	"github.com/sleepwell/sleepwell-server/internal/domain"
)

// The starter catalog written when neither store has one yet. The functions
// return fresh values so callers may modify them.

func templateProducts() []*domain.Product {
	return []*domain.Product{
		{
			ID:          1,
			Name:        "Cloud Comfort Elite",
			BrandID:     "casper",
			Price:       decimal.RequireFromString("129.99"),
			Rating:      4.8,
			ReviewCount: 1250,
			Recommended: true,
			Firmness:    domain.FirmnessMedium,
			Image:       "https://images.unsplash.com/photo-1631006387899-06240b7f6414?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=600&q=80",
			Features:    []string{"Cooling technology", "Adjustable height", "Memory foam"},
			Description: "The Cloud Comfort Elite pillow provides exceptional support with its adaptive memory foam core that conforms to your unique shape. The cooling gel-infused cover ensures you stay cool all night long.",
			Specifications: &domain.Specifications{
				Dimensions:       `24" x 16" x 5"`,
				Weight:           "3.2 lbs",
				Material:         "Memory foam with cooling gel layer",
				Cover:            "100% cotton, hypoallergenic",
				Filling:          "Shredded memory foam",
				Firmness:         "Medium-firm",
				Warranty:         "5 years",
				CareInstructions: "Cover is machine washable, air dry only",
			},
			Stock:          45,
			Sales:          230,
			Status:         domain.ProductActive,
			SleepPositions: []domain.SleepPosition{domain.SleepBack, domain.SleepSide},
		},
		{
			ID:             2,
			Name:           "Purple Harmony",
			BrandID:        "purple",
			Price:          decimal.RequireFromString("159.99"),
			Rating:         4.9,
			ReviewCount:    890,
			Recommended:    true,
			Firmness:       domain.FirmnessMediumFirm,
			Image:          "https://images.unsplash.com/photo-1591389703635-e15a07609a0f?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=600&q=80",
			Features:       []string{"Grid technology", "Temperature neutral", "No pressure points"},
			Description:    "The Purple Harmony pillow combines the best of both worlds with a responsive grid design for optimal support and breathability.",
			Stock:          12,
			Sales:          185,
			Status:         domain.ProductActive,
			SleepPositions: []domain.SleepPosition{domain.SleepSide, domain.SleepBack},
		},
	}
}

func templateBrands() []*domain.Brand {
	return []*domain.Brand{
		{
			ID:   "casper",
			Name: "Casper",
			Logo: "https://images.unsplash.com/photo-1571566882372-1598d88abd90?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=100&h=100&q=80",
		},
		{
			ID:   "purple",
			Name: "Purple",
			Logo: "https://images.unsplash.com/photo-1555424221-250de2a343ad?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=100&h=100&q=80",
		},
	}
}

func templateReviews() []*domain.Review {
	return []*domain.Review{
		{
			ID:        1,
			User:      "Emily R.",
			Avatar:    "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=100&h=100&q=80",
			Date:      "3 weeks ago",
			Rating:    5,
			Title:     "Best sleep in years!",
			Comment:   "I've struggled with neck pain for years and tried countless pillows. This one finally gave me the support I needed. The cooling technology really works too - no more flipping to the cold side!",
			Helpful:   124,
			Verified:  true,
			ProductID: 1,
		},
		{
			ID:        2,
			User:      "Michael T.",
			Avatar:    "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=100&h=100&q=80",
			Date:      "1 month ago",
			Rating:    4,
			Title:     "Great support, slightly too firm",
			Comment:   "The quality is excellent and my neck pain has improved. I do find it slightly too firm for my preference, but it's still much better than my old pillow. The cooling feature is a game changer for hot sleepers.",
			Helpful:   87,
			Verified:  true,
			ProductID: 1,
		},
	}
}
