package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdalocal/gateway/internal/route"
)

func TestCollector_AddRoutes(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil)
	c.AddRoutes("ApiA", []*route.Route{route.NewRoute("/a", []string{"GET"}, "FnA", route.KindRest)})
	c.AddRoutes("ApiB", []*route.Route{route.NewRoute("/b", []string{"GET"}, "FnB", route.KindRest)})
	c.AddRoutes("ApiA", []*route.Route{route.NewRoute("/a2", []string{"GET"}, "FnA", route.KindRest)})
	c.AddRoutes("ApiA", nil)

	entries := c.Entries()
	require.Len(t, entries, 2)
	// First-seen order.
	assert.Equal(t, "ApiA", entries[0].APIID)
	assert.Len(t, entries[0].Routes, 2)
	assert.Equal(t, "ApiB", entries[1].APIID)
}

func TestCollector_BinaryMediaTypes_UnionAndDecode(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil)
	c.AddBinaryMediaTypes("Api", []any{"image/png", "image~1gif"})
	c.AddBinaryMediaTypes("Api", []any{"image/png", "application/octet-stream"})

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"application/octet-stream", "image/gif", "image/png"}, entries[0].BinaryMediaTypes)
}

func TestCollector_BinaryMediaTypes_SkipsNonStrings(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil)
	c.AddBinaryMediaTypes("Api", []any{map[string]any{"Ref": "MediaType"}, "image/png", 3})

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"image/png"}, entries[0].BinaryMediaTypes)
}

func TestCollector_LastWriteWins(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil)
	c.AddCors("Api", &route.Cors{AllowOrigin: "first"})
	c.AddCors("Api", &route.Cors{AllowOrigin: "second"})
	c.AddCors("Api", nil)
	c.AddStageName("Api", "dev")
	c.AddStageName("Api", "prod")
	c.AddStageName("Api", "")
	c.AddStageVariables("Api", map[string]string{"a": "1"})
	c.AddStageVariables("Api", map[string]string{"b": "2"})

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Cors.AllowOrigin)
	assert.Equal(t, "prod", entries[0].StageName)
	assert.Equal(t, map[string]string{"b": "2"}, entries[0].StageVariables)
}

func TestCollector_Authorizers(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil)
	c.AddAuthorizers("Api", map[string]*route.Authorizer{
		"Auth": {Name: "Auth", Kind: route.AuthorizerToken, FunctionName: "AuthFn"},
	})
	c.SetDefaultAuthorizer("Api", "Auth")
	c.SetDefaultAuthorizer("Other", "")

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Authorizers, "Auth")
	assert.Equal(t, "Auth", entries[0].DefaultAuth)
}
