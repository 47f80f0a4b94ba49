package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

func validProduct() domain.Product {
	return domain.Product{
		ID:             1,
		Name:           "Cloud Comfort Elite",
		BrandID:        "casper",
		Price:          decimal.RequireFromString("129.99"),
		Rating:         4.8,
		Firmness:       domain.FirmnessMedium,
		Status:         domain.ProductActive,
		Stock:          45,
		SleepPositions: []domain.SleepPosition{domain.SleepBack, domain.SleepSide},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()

	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	return details
}

func TestValidator_ValidProduct(t *testing.T) {
	v := validation.New()

	p := validProduct()
	assert.NoError(t, v.Validate(p))
}

func TestValidator_ProductErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name   string
		mutate func(*domain.Product)
		field  string
	}{
		{"negative price", func(p *domain.Product) { p.Price = decimal.RequireFromString("-1.00") }, "price"},
		{"rating above five", func(p *domain.Product) { p.Rating = 5.5 }, "rating"},
		{"unknown firmness", func(p *domain.Product) { p.Firmness = "Rock-hard" }, "firmness"},
		{"unknown position", func(p *domain.Product) { p.SleepPositions = []domain.SleepPosition{"upside-down"} }, "sleep_positions[0]"},
		{"negative stock", func(p *domain.Product) { p.Stock = -3 }, "stock"},
		{"missing name", func(p *domain.Product) { p.Name = "" }, "name"},
		{"unknown status", func(p *domain.Product) { p.Status = "archived" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)

			err := v.Validate(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}

func TestValidator_MeasurementRanges(t *testing.T) {
	v := validation.New()

	m := domain.Measurement{UserID: "user-1", NeckLength: 5, NeckWidth: 7, SleepPosition: domain.SleepBack}
	require.NoError(t, v.Validate(m))

	m.NeckLength = 1.5
	m.NeckWidth = 21
	details := fieldErrors(t, v.Validate(m))
	assert.Contains(t, details, "neck_length")
	assert.Contains(t, details, "neck_width")
}

func TestValidator_ZeroPriceAllowed(t *testing.T) {
	v := validation.New()

	p := validProduct()
	p.Price = decimal.Zero
	assert.NoError(t, v.Validate(p))
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	r := domain.Review{ProductID: 1, Rating: 9}
	details := fieldErrors(t, v.Validate(r))

	// Should use JSON tag name "rating", not struct field name "Rating"
	assert.Contains(t, details, "rating")
	assert.NotContains(t, details, "Rating")
}
