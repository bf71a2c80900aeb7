package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TopicsManifest declares extra broker destinations the agent should follow
// beyond its private queues, e.g. like counter topics for posts a dashboard
// is watching.
type TopicsManifest struct {
	// LikePosts lists post IDs whose like counter topics should be subscribed.
	LikePosts []string `yaml:"like_posts"`
	// Topics lists raw destinations to subscribe verbatim.
	Topics []string `yaml:"topics"`
}

// LoadTopicsManifest reads and parses the YAML manifest at path.
// A missing path returns an empty manifest; callers treat the manifest as
// strictly optional.
func LoadTopicsManifest(path string) (*TopicsManifest, error) {
	if path == "" {
		return &TopicsManifest{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics manifest %s: %w", path, err)
	}

	var manifest TopicsManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse topics manifest %s: %w", path, err)
	}
	return &manifest, nil
}
