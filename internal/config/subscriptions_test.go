package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"feedctx/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSubscriptions = `
[[categories]]
name = "Tech"
color = "#0088ff"

[[feeds]]
url = "https://example.com/feed.xml"
category = "Tech"
tags = ["daily", "news"]

[[feeds]]
url = "https://t.me/s/example_channel"
title = "Example channel"
`

func TestParseSubscriptions(t *testing.T) {
	subs, err := config.ParseSubscriptions([]byte(sampleSubscriptions))
	require.NoError(t, err)

	require.Len(t, subs.Categories, 1)
	assert.Equal(t, "Tech", subs.Categories[0].Name)
	assert.Equal(t, "#0088ff", subs.Categories[0].Color)

	require.Len(t, subs.Feeds, 2)
	assert.Equal(t, "https://example.com/feed.xml", subs.Feeds[0].URL)
	assert.Equal(t, "Tech", subs.Feeds[0].Category)
	assert.Equal(t, []string{"daily", "news"}, subs.Feeds[0].Tags)
	assert.Equal(t, "Example channel", subs.Feeds[1].Title)
}

func TestParseSubscriptionsRejectsEmptyURL(t *testing.T) {
	_, err := config.ParseSubscriptions([]byte("[[feeds]]\nurl = \" \"\n"))
	require.Error(t, err)
}

func TestParseSubscriptionsRejectsInvalidTOML(t *testing.T) {
	_, err := config.ParseSubscriptions([]byte("[[feeds]\nurl = "))
	require.Error(t, err)
}

func TestLoadSubscriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSubscriptions), 0o600))

	subs, err := config.LoadSubscriptions(path)
	require.NoError(t, err)
	assert.Len(t, subs.Feeds, 2)

	_, err = config.LoadSubscriptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
