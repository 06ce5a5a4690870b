package validator

import (
	"net"
	"net/url"
	"strings"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/encoder"
)

const (
	MinAliasLength = 3
	MaxAliasLength = 20
)

// reservedAliases collide with top-level routes.
var reservedAliases = []string{
	"api", "admin", "auth", "health", "metrics", "static", "stats", "url", "users",
}

// URLValidator validates target URLs and custom aliases
type URLValidator struct {
	maxLength       int
	allowedSchemes  []string
	blockedDomains  []string
	blockPrivateIPs bool
}

// NewURLValidator creates a validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		maxLength:       2048,
		allowedSchemes:  []string{"http", "https"},
		blockedDomains:  []string{},
		blockPrivateIPs: true,
	}
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host
func (v *URLValidator) ValidateURL(rawURL string) *apperr.AppError {
	if strings.TrimSpace(rawURL) == "" {
		return apperr.BadRequest("URL is required")
	}

	if len(rawURL) > v.maxLength {
		return apperr.BadRequest("URL exceeds maximum length of 2048 characters")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperr.BadRequest("Invalid URL").WithDetails("URL could not be parsed")
	}

	if !v.isAllowedScheme(parsedURL.Scheme) {
		return apperr.BadRequest("Invalid URL").WithDetails("URL must use http or https scheme")
	}

	host := parsedURL.Hostname()
	if host == "" {
		return apperr.BadRequest("Invalid URL").WithDetails("URL must have a valid host")
	}

	if v.isBlockedDomain(host) {
		return apperr.BadRequest("This domain is not allowed")
	}

	if v.blockPrivateIPs && isPrivateHost(host) {
		return apperr.BadRequest("URLs pointing to private addresses are not allowed")
	}

	return nil
}

// ValidateCustomAlias checks a user-chosen alias. Empty means "generate one".
func (v *URLValidator) ValidateCustomAlias(alias string) *apperr.AppError {
	if alias == "" {
		return nil
	}

	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return apperr.BadRequest("Alias must be between 3 and 20 characters")
	}

	if !encoder.IsValid(alias) {
		return apperr.BadRequest("Alias can only contain letters and numbers")
	}

	for _, r := range reservedAliases {
		if strings.EqualFold(alias, r) {
			return apperr.BadRequest("This alias is reserved and cannot be used")
		}
	}

	return nil
}

// ============================================================
// HELPER METHODS
// ============================================================

func (v *URLValidator) isAllowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func (v *URLValidator) isBlockedDomain(host string) bool {
	host = strings.ToLower(host)
	for _, blocked := range v.blockedDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func isPrivateHost(host string) bool {
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// ============================================================
// CONFIGURATION METHODS
// ============================================================

// WithMaxLength sets maximum URL length
func (v *URLValidator) WithMaxLength(length int) *URLValidator {
	v.maxLength = length
	return v
}

// WithBlockedDomains adds domains to block list
func (v *URLValidator) WithBlockedDomains(domains ...string) *URLValidator {
	for _, d := range domains {
		v.blockedDomains = append(v.blockedDomains, strings.ToLower(d))
	}
	return v
}

// WithAllowPrivateIPs allows private and loopback addresses
func (v *URLValidator) WithAllowPrivateIPs() *URLValidator {
	v.blockPrivateIPs = false
	return v
}
