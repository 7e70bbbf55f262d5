package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pbaille/funnel/internal/domain"
)

var testNodes = []domain.RoadmapNode{
	{
		Title:      "Programming",
		Topic:      "programming",
		Difficulty: domain.Beginner,
		Progress:   50,
		Categories: []string{"programming"},
		Resources: []domain.Resource{
			{ID: "0123456789abcdef", Title: "Python basics", IsCompleted: true, Categories: []string{"programming"}},
			{ID: "fedcba9876543210", Title: "Go tour", Categories: []string{"programming"}},
		},
	},
	{
		Title:      "Design",
		Topic:      "design",
		Difficulty: domain.Intermediate,
		Locked:     true,
		Categories: []string{"design"},
		Resources: []domain.Resource{
			{ID: "aaaaaaaabbbbbbbb", Title: "Figma", Categories: []string{"design"}},
		},
	},
}

func TestRenderRoadmapText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRoadmap(&buf, testNodes, "text"))

	out := buf.String()
	assert.Contains(t, out, "1.   Programming [beginner] 50%")
	assert.Contains(t, out, "[x] 01234567  Python basics")
	assert.Contains(t, out, "2. 🔒 Design [intermediate] 0%")
}

func TestRenderRoadmapEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRoadmap(&buf, nil, ""))
	assert.Contains(t, buf.String(), "No roadmap yet")
}

func TestRenderRoadmapStructured(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRoadmap(&buf, testNodes, "json"))
	var fromJSON []domain.RoadmapNode
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, "design", fromJSON[1].Topic)
	assert.True(t, fromJSON[1].Locked)

	buf.Reset()
	require.NoError(t, renderRoadmap(&buf, testNodes, "yaml"))
	var fromYAML []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "programming", fromYAML[0]["topic"])
	assert.Equal(t, "beginner", fromYAML[0]["difficulty"])
	assert.NotContains(t, buf.String(), "user_id")

	assert.Error(t, renderRoadmap(&buf, testNodes, "xml"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "line one line two", truncate("line one\nline two", 40))
	assert.Equal(t, "héllo w...", truncate("héllo wörld again", 10))
}
