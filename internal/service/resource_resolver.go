// internal/service/resource_resolver.go
package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	appErrors "github.com/unclebandit/notify-event/internal/errors"
	"github.com/unclebandit/notify-event/internal/model"
)

// resourceEndpoints maps each supported resource type to its API endpoint.
var resourceEndpoints = map[string]string{
	"order":             "orders",
	"customer":          "customers",
	"product":           "products",
	"cart":              "carts",
	"payment":           "payments",
	"category":          "categories",
	"inventory-entry":   "inventory",
	"shopping-list":     "shopping-lists",
	"review":            "reviews",
	"quote":             "quotes",
	"quote-request":     "quote-requests",
	"staged-quote":      "staged-quotes",
	"business-unit":     "business-units",
	"store":             "stores",
	"product-selection": "product-selections",
	"standalone-price":  "standalone-prices",
	"discount-code":     "discount-codes",
	"cart-discount":     "cart-discounts",
	"customer-group":    "customer-groups",
	"channel":           "channels",
	"shipping-method":   "shipping-methods",
	"tax-category":      "tax-categories",
	"zone":              "zones",
	"type":              "types",
	"state":             "states",
}

// SupportedResourceTypes lists the resource types that can be resolved, sorted.
func SupportedResourceTypes() []string {
	out := make([]string, 0, len(resourceEndpoints))
	for rt := range resourceEndpoints {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}

func IsSupportedResourceType(resourceType string) bool {
	_, ok := resourceEndpoints[resourceType]
	return ok
}

// ResourceFetcher loads a live resource. A missing resource returns nil, nil.
type ResourceFetcher interface {
	GetResource(ctx context.Context, endpoint, id string) (map[string]any, error)
}

type ResourceResolver struct {
	Fetcher ResourceFetcher
	Log     logrus.FieldLogger
}

// Resolve returns the live resource, falling back to the snapshot embedded in
// the event, then to the event itself.
func (r *ResourceResolver) Resolve(ctx context.Context, resourceType, resourceID string, env *model.Envelope) (map[string]any, error) {
	endpoint, ok := resourceEndpoints[resourceType]
	if !ok {
		return nil, appErrors.NewInvalidResourceType(resourceType)
	}

	log := r.Log.WithFields(logrus.Fields{"resourceType": resourceType, "resourceId": resourceID})

	if r.Fetcher != nil {
		body, err := r.Fetcher.GetResource(ctx, endpoint, resourceID)
		switch {
		case err != nil:
			log.WithError(err).Warn("Failed to fetch resource, using event data")
		case len(body) > 0:
			return body, nil
		default:
			log.Warn("Resource not found, using event data")
		}
	}

	if snap, ok := env.Snapshot(resourceType); ok {
		return snap, nil
	}

	if env == nil || env.Resource == nil || env.Type == "" {
		eventType := ""
		if env != nil {
			eventType = env.Type
		}
		return nil, appErrors.NewDataUnavailable(eventType)
	}
	return env.Document(), nil
}
