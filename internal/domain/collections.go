// Package domain holds the SleepWell entities shared by the cache, the remote
// gateways and the services.
package domain

// Collection names. They double as remote table names and as the prefix of
// local cache keys ("{collection}:{id}").
const (
	CollectionProfiles     = "profiles"
	CollectionMeasurements = "measurements"
	CollectionProducts     = "products"
	CollectionBrands       = "brands"
	CollectionReviews      = "reviews"
	CollectionChatHistory  = "chat_history"

	// CollectionCarts is local-only; it never reaches the remote service.
	CollectionCarts = "carts"
)

// RemoteCollections lists every collection the remote schema must provide,
// in creation order.
var RemoteCollections = []string{
	CollectionProfiles,
	CollectionMeasurements,
	CollectionProducts,
	CollectionBrands,
	CollectionReviews,
	CollectionChatHistory,
}

// KeyColumn returns the primary key column of a remote collection.
func KeyColumn(collection string) string {
	if collection == CollectionChatHistory {
		return "user_id"
	}
	return "id"
}

// OwnerColumn returns the column most lookups on a collection filter by, or
// "" when the collection is only ever read by key or in full.
func OwnerColumn(collection string) string {
	switch collection {
	case CollectionMeasurements:
		return "user_id"
	case CollectionReviews:
		return "product_id"
	case CollectionProducts:
		return "brand_id"
	default:
		return ""
	}
}
