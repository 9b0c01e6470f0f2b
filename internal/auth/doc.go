// Package auth provides bearer-token verification for the gateway and an
// explicit token holder for client programs.
//
// The server side centers on JWTVerifier, which validates HS256-signed tokens
// and extracts the subject claim, and HTTPAuthMiddleware, which guards HTTP
// routes and places the authenticated subject on the request context.
//
// The client side uses TokenSource, an application-scoped holder with an
// explicit Init/Token/Clear lifecycle so programs never reach for ambient
// global token state.
package auth
