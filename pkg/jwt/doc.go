// Package jwt verifies the HS256 access tokens issued by the account service
// and exposes the caller identity to HTTP handlers.
//
// Service wraps github.com/golang-jwt/jwt/v5 with a fixed algorithm, optional
// issuer and audience checks, and translation of library errors into the
// package sentinels (ErrExpiredToken, ErrInvalidSignature and friends).
//
//	svc, err := jwt.NewFromString(cfg.SigningKey, jwt.WithIssuer("vowbill-accounts"))
//	if err != nil {
//		return err
//	}
//
//	r.Use(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
//		Service:  svc,
//		Optional: true,
//	}))
//
// Handlers read the verified identity with GetClaims.
package jwt
