package querysymbol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaps struct {
	enabled map[string]bool
	err     error
	calls   int
}

func (f *fakeCaps) Enabled(_ context.Context, org, feature string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.enabled[org+"/"+feature], nil
}

func TestRender_NegativeIDRendersNothing(t *testing.T) {
	sym, ok, err := Render(-1, CurrentStyle, Options{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Symbol{}, sym)
}

func TestRender_Variants(t *testing.T) {
	legacy, ok, err := Render(26, LegacyStyle, Options{Class: "extra"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "aa", legacy.Label)
	assert.Contains(t, string(legacy.HTML), "query-symbol--legacy extra")
	assert.NotContains(t, string(legacy.HTML), "query-symbol__text")

	current, ok, err := Render(1, CurrentStyle, Options{Size: "sm"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", current.Label)
	assert.Contains(t, string(current.HTML), "query-symbol--current query-symbol--sm")
	assert.Contains(t, string(current.HTML), `data-query="b"`)
}

func TestRender_EscapesOptions(t *testing.T) {
	sym, _, err := Render(0, LegacyStyle, Options{Title: `"><script>`})
	require.NoError(t, err)
	assert.NotContains(t, string(sym.HTML), "<script>")
}

func TestRenderAll_SkipsHidden(t *testing.T) {
	syms, hidden, err := RenderAll([]int{0, -1, 2, -5, 27}, LegacyStyle, Options{})
	require.NoError(t, err)
	labels := make([]string, 0, len(syms))
	for _, s := range syms {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"a", "c", "ab"}, labels)
	assert.Equal(t, []int{-1, -5}, hidden)
}

func TestResolveVariant(t *testing.T) {
	ctx := context.Background()

	v, err := ResolveVariant(ctx, nil, "acme")
	require.NoError(t, err)
	assert.Equal(t, LegacyStyle, v)

	caps := &fakeCaps{enabled: map[string]bool{"acme/" + NewInputStyleFeature: true}}
	v, err = ResolveVariant(ctx, caps, "acme")
	require.NoError(t, err)
	assert.Equal(t, CurrentStyle, v)
	assert.Equal(t, 1, caps.calls)

	v, err = ResolveVariant(ctx, caps, "other")
	require.NoError(t, err)
	assert.Equal(t, LegacyStyle, v)

	boom := errors.New("store offline")
	v, err = ResolveVariant(ctx, &fakeCaps{err: boom}, "acme")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, LegacyStyle, v)
}

func TestVariantJSON(t *testing.T) {
	sym, _, err := Render(0, CurrentStyle, Options{})
	require.NoError(t, err)
	blob, err := json.Marshal(sym)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(blob), `"variant":"current"`), string(blob))
}

func TestParseVariant(t *testing.T) {
	v, ok := ParseVariant(" Current ")
	assert.True(t, ok)
	assert.Equal(t, CurrentStyle, v)
	_, ok = ParseVariant("neon")
	assert.False(t, ok)
}
