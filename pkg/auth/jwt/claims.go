package jwt

import (
	"fmt"
	"slices"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/pubgate/pkg/auth"
)

// identity builds the caller from validated claims.
func (a *Authenticator) identity(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject := stringClaim(claims, a.config.SubjectClaim)
	if subject == "" {
		return nil, fmt.Errorf("token has no %q claim", a.config.SubjectClaim)
	}
	if subject == auth.AnonymousSubject {
		return nil, fmt.Errorf("subject %q is reserved", subject)
	}

	id := &auth.Identity{
		Subject:     subject,
		ServiceTier: stringClaim(claims, a.config.TierClaim),
		Scopes:      a.permissions(claims),
	}
	if id.ServiceTier == "" {
		id.ServiceTier = "default"
	}
	if tenant := stringClaim(claims, a.config.TenantClaim); tenant != "" {
		id.Metadata = map[string]string{"tenant_id": tenant}
	}
	return id, nil
}

// permissions merges the scope and permissions claims with the
// permissions granted by the caller's roles. The result is sorted.
func (a *Authenticator) permissions(claims jwtlib.MapClaims) []string {
	var perms []string
	perms = append(perms, listClaim(claims, a.config.ScopesClaim)...)
	perms = append(perms, listClaim(claims, a.config.PermissionsClaim)...)
	for _, role := range listClaim(claims, a.config.RolesClaim) {
		perms = append(perms, a.config.Roles[role]...)
	}
	if len(perms) == 0 {
		return nil
	}
	slices.Sort(perms)
	return slices.Compact(perms)
}

// lookup resolves a possibly dotted claim name through nested objects.
func lookup(claims jwtlib.MapClaims, name string) (any, bool) {
	var cur any = map[string]any(claims)
	for part := range strings.SplitSeq(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringClaim(claims jwtlib.MapClaims, name string) string {
	v, _ := lookup(claims, name)
	s, _ := v.(string)
	return s
}

// listClaim reads a space-separated string or an array of strings.
func listClaim(claims jwtlib.MapClaims, name string) []string {
	v, ok := lookup(claims, name)
	if !ok {
		return nil
	}
	switch v := v.(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
