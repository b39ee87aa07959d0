package cache

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "pos:"

const (
	EntityProduct      = "product"
	EntityProducts     = "products"
	EntityProductCount = "product_count"
	EntityBrands       = "brands"
	EntityCategories   = "categories"
)

// generationTTL outlives every entry TTL, so a token never expires while a
// load it guards is still in flight.
const generationTTL = 7 * 24 * time.Hour

// listEntities are the tenant-wide listings a product write can change.
var listEntities = []string{EntityProducts, EntityProductCount, EntityBrands, EntityCategories}

// Key builds pos:<tenant>:<entity>:<filters>. url.Values.Encode sorts by key,
// so equal filter sets always give the same key and the escaping keeps
// distinct sets apart.
func Key(entity string, tenantID uuid.UUID, filters url.Values) string {
	return entityPrefix(entity, tenantID) + filters.Encode()
}

// ProductKey is the key of a single product read.
func ProductKey(tenantID, productID uuid.UUID) string {
	return Key(EntityProduct, tenantID, url.Values{"id": {productID.String()}})
}

func tenantPrefix(tenantID uuid.UUID) string {
	return KeyPrefix + tenantID.String() + ":"
}

func entityPrefix(entity string, tenantID uuid.UUID) string {
	return tenantPrefix(tenantID) + entity + ":"
}

// generationKey holds the tenant's invalidation token. It lives outside
// tenantPrefix so clearing a tenant never removes it.
func generationKey(tenant string) string {
	return KeyPrefix + "gen:" + tenant
}

// tenantOf returns the tenant segment of key.
func tenantOf(key string) string {
	return strings.SplitN(strings.TrimPrefix(key, KeyPrefix), ":", 2)[0]
}

// entityOf returns the entity segment of key, used as a metrics label.
func entityOf(key string) string {
	parts := strings.SplitN(strings.TrimPrefix(key, KeyPrefix), ":", 3)
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[1]
}
