package tenants

import (
	"context"
	"errors"
)

// ErrNotFound reports a subdomain with no provisioned tenant.
var ErrNotFound = errors.New("tenant not found")

type Store interface {
	// TenantBySubdomain resolves a leading host label to a tenant.
	// Returns ErrNotFound for unprovisioned labels.
	TenantBySubdomain(ctx context.Context, label string) (Tenant, error)
	// TenantByID fetches a tenant by its id.
	TenantByID(ctx context.Context, id string) (Tenant, error)
}
