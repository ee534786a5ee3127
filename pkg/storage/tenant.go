package storage

import "context"

type tenantKey struct{}

// WithTenant scopes every store operation made with the returned context
// to the object tree of tenant. The auth middleware sets it from the
// caller's tenant_id.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFrom returns the tenant set by WithTenant. The empty tenant owns
// the tree of a single-tenant deployment.
func TenantFrom(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}
