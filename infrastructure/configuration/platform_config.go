package configuration

import (
	"fmt"
	"os"
	"strings"
)

// PlatformConfig is the resolved app registration for one social platform.
type PlatformConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	BearerToken  string
	APIKey       string
	APISecret    string
	BaseURL      string
}

// GetPlatformConfig returns the app credentials for platform, resolving each
// field from the environment (<PLATFORM>_CLIENT_ID, ...), then the config file,
// then defaults.
func GetPlatformConfig(platform string) (*PlatformConfig, error) {
	var oc OAuthClient
	switch strings.ToLower(platform) {
	case "instagram":
		oc = C.Platforms.Instagram
	case "tiktok":
		oc = C.Platforms.TikTok
	case "twitter":
		oc = C.Platforms.Twitter
	case "youtube":
		oc = C.Platforms.YouTube
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}

	prefix := strings.ToUpper(platform)
	cfg := &PlatformConfig{
		ClientID:     getConfigValue(oc.ClientID, prefix+"_CLIENT_ID", ""),
		ClientSecret: getConfigValue(oc.ClientSecret, prefix+"_CLIENT_SECRET", ""),
		RedirectURI:  getConfigValue(oc.RedirectURI, prefix+"_REDIRECT_URI", defaultRedirect(platform)),
		BearerToken:  getConfigValue(oc.BearerToken, prefix+"_BEARER_TOKEN", ""),
		APIKey:       getConfigValue(oc.APIKey, prefix+"_API_KEY", ""),
		APISecret:    getConfigValue(oc.APISecret, prefix+"_API_SECRET", ""),
		BaseURL:      getConfigValue(oc.BaseURL, prefix+"_BASE_URL", ""),
		Scopes:       oc.Scopes,
	}
	if v := os.Getenv(prefix + "_SCOPES"); v != "" {
		cfg.Scopes = strings.Split(v, ",")
	}
	// Missing client credentials are not fatal here: adapters report them when an
	// operation that needs them is attempted.
	return cfg, nil
}

func defaultRedirect(platform string) string {
	base := strings.TrimRight(C.App.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if C.App.TLSEnabled {
			scheme = "https"
		}
		port := C.App.Port
		if port == 0 {
			port = 10001
		}
		base = fmt.Sprintf("%s://localhost:%d", scheme, port)
	}
	return fmt.Sprintf("%s/auth/%s/callback", base, strings.ToLower(platform))
}

// getConfigValue gets value from the environment first, then config, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Placeholders such as YOUR_CLIENT_ID count as unset
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
