package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists routes that bypass authentication: liveness, database
// health and the Prometheus scrape endpoint.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given path is a public infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
