package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters_Valid(t *testing.T) {
	got, err := ParseFilters(`span.op:resource.script  transaction:"/checkout page" span.op:resource.script`)
	require.NoError(t, err)
	want := Filters{
		"span.op":     "resource.script",
		"transaction": "/checkout page",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilters_Empty(t *testing.T) {
	got, err := ParseFilters("   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseFilters_Errors(t *testing.T) {
	cases := map[string]string{
		"free text":    "slow",
		"negation":     "!span.op:resource.css",
		"comparison":   "span.op:>resource.css",
		"unsupported":  "device.model:pixel",
		"conflicting":  "span.op:a span.op:b",
		"unterminated": `transaction:"/home`,
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilters(q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestParseFilters_ErrorMessages(t *testing.T) {
	_, err := ParseFilters("span.op:a span.op:b")
	assert.ErrorContains(t, err, "Multiple filters for span.op")

	_, err = ParseFilters("platform:android")
	assert.ErrorContains(t, err, "platform is not supported")

	_, err = ParseFilters(`release:1 transaction:"x`)
	assert.ErrorContains(t, err, "column 23")
}

func TestFilters_String(t *testing.T) {
	f := Filters{"transaction": "/a b", "span.op": "resource.img"}
	assert.Equal(t, `span.op:resource.img transaction:"/a b"`, f.String())

	back, err := ParseFilters(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, back)
}

func TestParseProfileFilters(t *testing.T) {
	got, err := ParseProfileFilters(`platform:android device_model:"Pixel 7" transaction_name:/checkout`)
	require.NoError(t, err)
	want := Filters{
		"platform":         "android",
		"device_model":     "Pixel 7",
		"transaction_name": "/checkout",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseProfileFilters("span.op:resource.script")
	assert.ErrorContains(t, err, "span.op is not supported")

	_, err = ParseProfileFilters("version:1 version:2")
	assert.ErrorContains(t, err, "Multiple filters for version")
}
