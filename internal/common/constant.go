package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// Supported media types and their canonical extensions.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeEPUB = "application/epub+zip"

	ExtPDF  = "pdf"
	ExtEPUB = "epub"
)
