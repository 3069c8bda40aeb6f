package sources

import (
	_ "embed"
	"fmt"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
	"time"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Endpoint describes one origin: display name and the URLs its adapter talks to.
type Endpoint struct {
	Tag          string            `yaml:"tag"`
	Name         string            `yaml:"name"`
	Organization string            `yaml:"organization"`
	MinInterval  time.Duration     `yaml:"min_interval"`
	URLs         map[string]string `yaml:"urls"`
}

func (e Endpoint) URL(key string) string {
	return e.URLs[key]
}

func Catalog() ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := yaml.Unmarshal(catalogYAML, &endpoints); err != nil {
		return nil, fmt.Errorf("error decoding source catalog: %w", err)
	}
	return endpoints, nil
}

// Build returns the adapters named in cfg.Enabled, in that order; an empty list enables the whole catalog.
func Build(cfg config.SourcesConfig, profile config.ProfileConfig) ([]Source, error) {
	catalog, err := Catalog()
	if err != nil {
		return nil, err
	}
	byTag := lo.KeyBy(catalog, func(e Endpoint) string { return e.Tag })

	tags := cfg.Enabled
	if len(tags) == 0 {
		tags = lo.Map(catalog, func(e Endpoint, _ int) string { return e.Tag })
	}

	client := NewClient(cfg.Timeout, cfg.UserAgent)
	result := make([]Source, 0, len(tags))

	for _, tag := range lo.Uniq(tags) {
		endpoint, ok := byTag[tag]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", tag)
		}
		sourceClient := client.WithMinInterval(endpoint.MinInterval)

		switch tag {
		case "ucla":
			result = append(result, NewUCLA(endpoint, sourceClient, profile))
		case "uci":
			result = append(result, NewUCI(endpoint, sourceClient, profile))
		case "ca-grants":
			result = append(result, NewCAGrants(endpoint, sourceClient))
		case "zintellect":
			result = append(result, NewZintellect(endpoint, sourceClient, profile))
		case "pathways":
			result = append(result, NewPathways(endpoint, cfg.UserAgent, profile))
		case "ucsd":
			result = append(result, NewUCSD(endpoint, sourceClient))
		case "jhu":
			result = append(result, NewJHU(endpoint, cfg.JHUFile, cfg.JHUStaleDays))
		default:
			return nil, fmt.Errorf("source %q has no adapter", tag)
		}
	}

	return result, nil
}
