package sites

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SiteOverride adjusts one adapter from the site config file.
type SiteOverride struct {
	BaseURL  string `yaml:"base_url"`
	Priority *int   `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
}

// SiteConfig is the optional YAML site-override file. Absent entries
// leave the adapter defaults untouched.
type SiteConfig struct {
	Sites map[string]SiteOverride `yaml:"sites"`
}

// ForSite returns the override for a site, zero-valued when absent.
func (c SiteConfig) ForSite(name string) SiteOverride {
	return c.Sites[name]
}

// LoadSiteConfig reads the site-override file. An empty path yields an
// empty config.
func LoadSiteConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "sites: read site config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "sites: parse site config %s", path)
	}
	return cfg, nil
}
