// Package auth authenticates API callers with bearer tokens.
//
// It supports three modes, selected with AUTH_MODE:
//   - "none": no authentication; every caller is treated as staff (development only)
//   - "local": accounts register and log in with a password and receive an HS256 JWT
//   - "remote": tokens are checked by an external service via POST {AUTH_VERIFY_URL}/verify-token
//
// For local mode, additional configuration:
//
//	AUTH_JWT_SECRET=<random string>  # Generated at startup if empty; tokens then die with the process
//	AUTH_TOKEN_EXPIRY=24h            # Token lifetime
//	AUTH_BCRYPT_COST=12              # bcrypt cost factor
//
// # Usage
//
//	mw := auth.NewMiddleware(tokens, userService, cfg.Auth.Mode)
//	api.Use(mw.Handler())
//	api.POST("/books", auth.RequireStaff(), books.Create)
//
// Extract the caller in handlers:
//
//	p, _ := auth.GetPrincipal(c)
//	if !p.CanAccess(ownerID) { ... }
package auth
