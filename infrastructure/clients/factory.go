package clients

import (
	"fmt"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/instagram"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/tiktok"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/twitter"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/youtube"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/configuration"
)

type constructor func(cfg model.AdapterConfig, deps platform.Deps) repository.IPlatformAdapter

var constructors = map[model.Platform]constructor{
	model.PlatformInstagram: instagram.NewInstagramClient,
	model.PlatformTikTok:    tiktok.NewTikTokClient,
	model.PlatformTwitter:   twitter.NewTwitterClient,
	model.PlatformYouTube:   youtube.NewYouTubeClient,
}

// AppConfigFunc resolves the app registration of a platform.
type AppConfigFunc func(platform string) (*configuration.PlatformConfig, error)

// AdapterFactory builds one adapter instance per call. Creator credentials come
// from the caller; app credentials and API roots come from configuration.
type AdapterFactory struct {
	deps      platform.Deps
	enabled   []model.Platform
	appConfig AppConfigFunc
}

// NewAdapterFactory enables the named platforms. Unknown names are skipped.
func NewAdapterFactory(deps platform.Deps, enabled []string) repository.IAdapterFactory {
	return newAdapterFactory(deps, enabled, configuration.GetPlatformConfig)
}

func newAdapterFactory(deps platform.Deps, enabled []string, appConfig AppConfigFunc) *AdapterFactory {
	f := &AdapterFactory{deps: deps, appConfig: appConfig}
	seen := map[model.Platform]bool{}
	for _, name := range enabled {
		p, ok := model.ParsePlatform(name)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		f.enabled = append(f.enabled, p)
	}
	return f
}

func (f *AdapterFactory) Supported() []model.Platform {
	out := make([]model.Platform, len(f.enabled))
	copy(out, f.enabled)
	return out
}

func (f *AdapterFactory) New(p model.Platform, cfg model.AdapterConfig) (repository.IPlatformAdapter, error) {
	build, ok := constructors[p]
	if !ok || !f.isEnabled(p) {
		return nil, fmt.Errorf("platform %q is not enabled", p)
	}
	app, err := f.appConfig(string(p))
	if err != nil {
		return nil, err
	}
	deps := f.deps
	if app.BaseURL != "" {
		deps.BaseURL = app.BaseURL
	}
	return build(mergeAppConfig(cfg, app), deps), nil
}

func (f *AdapterFactory) isEnabled(p model.Platform) bool {
	for _, e := range f.enabled {
		if e == p {
			return true
		}
	}
	return false
}

// mergeAppConfig fills fields the caller left empty from the app registration.
// User tokens only ever come from the caller; the app bearer token travels in
// its own field.
func mergeAppConfig(cfg model.AdapterConfig, app *configuration.PlatformConfig) model.AdapterConfig {
	if cfg.ClientID == "" {
		cfg.ClientID = app.ClientID
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = app.ClientSecret
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = app.RedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = app.Scopes
	}
	if cfg.AppBearerToken == "" {
		cfg.AppBearerToken = app.BearerToken
	}
	if cfg.APIKey == "" {
		cfg.APIKey = app.APIKey
	}
	if cfg.APISecret == "" {
		cfg.APISecret = app.APISecret
	}
	return cfg
}
