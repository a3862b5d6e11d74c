package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// SubscriptionCategory is a category declared in the feeds file.
type SubscriptionCategory struct {
	Name  string `toml:"name"`
	Color string `toml:"color,omitempty"`
}

// SubscriptionFeed is a feed declared in the feeds file. Category refers to
// a category by name.
type SubscriptionFeed struct {
	URL      string   `toml:"url"`
	Title    string   `toml:"title,omitempty"`
	Category string   `toml:"category,omitempty"`
	Tags     []string `toml:"tags,omitempty"`
}

// Subscriptions is the top-level shape of FEEDS_FILE.
type Subscriptions struct {
	Categories []SubscriptionCategory `toml:"categories"`
	Feeds      []SubscriptionFeed     `toml:"feeds"`
}

func LoadSubscriptions(path string) (*Subscriptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions file: %w", err)
	}

	return ParseSubscriptions(data)
}

func ParseSubscriptions(data []byte) (*Subscriptions, error) {
	var subs Subscriptions
	if err := toml.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("parse subscriptions file: %w", err)
	}

	for i, f := range subs.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return nil, fmt.Errorf("feed #%d has empty url", i+1)
		}
	}

	for i, c := range subs.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category #%d has empty name", i+1)
		}
	}

	return &subs, nil
}
