package auth

import "context"

type claimsKey struct{}

func NewContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the verified claims for the request, or nil when the
// session is unauthenticated.
func FromContext(ctx context.Context) *Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*Claims)
	return claims
}
