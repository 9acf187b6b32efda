package routes

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRouteElems(t *testing.T) {
	r := httptest.NewRequest("GET", "/player/32/build", nil)

	elems, err := extractRouteElems(r, "/player/")
	require.NoError(t, err)
	assert.Equal(t, []string{"32", "build"}, elems)

	// A trailing slash does not produce an empty element.
	r = httptest.NewRequest("GET", "/player/32/", nil)
	elems, err = extractRouteElems(r, "/player/")
	require.NoError(t, err)
	assert.Equal(t, []string{"32"}, elems)

	// The bare prefix yields no elements.
	r = httptest.NewRequest("GET", "/player/", nil)
	elems, err = extractRouteElems(r, "/player/")
	require.NoError(t, err)
	assert.Empty(t, elems)

	// A route outside of the prefix is an error.
	r = httptest.NewRequest("GET", "/universes/32", nil)
	_, err = extractRouteElems(r, "/player/")
	assert.Error(t, err)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/planets/available?galaxy=3&bogus=x", nil)

	assert.Equal(t, 3, queryInt(r, "galaxy", 0))
	assert.Equal(t, 0, queryInt(r, "system", 0))
	assert.Equal(t, 7, queryInt(r, "bogus", 7))
}

func TestPagingClampsValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/trade/offers?limit=500&offset=-3", nil)
	limit, offset := paging(r, 50, 200)
	assert.Equal(t, 200, limit)
	assert.Equal(t, 0, offset)

	r = httptest.NewRequest("GET", "/trade/offers?limit=0", nil)
	limit, _ = paging(r, 50, 200)
	assert.Equal(t, 50, limit)

	r = httptest.NewRequest("GET", "/trade/offers?limit=10&offset=30", nil)
	limit, offset = paging(r, 50, 200)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 30, offset)
}

func TestDecodeBodyToleratesEmptyBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/player/1/build", nil)

	body, err := decodeBody(r)
	require.NoError(t, err)
	assert.Empty(t, body)

	r = httptest.NewRequest("POST", "/player/1/build", strings.NewReader(`{"building_type":"metal_mine"}`))
	body, err = decodeBody(r)
	require.NoError(t, err)
	assert.Equal(t, "metal_mine", body["building_type"])

	r = httptest.NewRequest("POST", "/player/1/build", strings.NewReader(`{"broken`))
	_, err = decodeBody(r)
	assert.Error(t, err)
}

func TestAsBodyInt(t *testing.T) {
	assert.Equal(t, 4, asBodyInt(float64(4), 0))
	assert.Equal(t, 4, asBodyInt(4, 0))
	assert.Equal(t, 4, asBodyInt("4", 0))
	assert.Equal(t, 9, asBodyInt("x", 9))
	assert.Equal(t, 9, asBodyInt(nil, 9))
	assert.Equal(t, 9, asBodyInt(true, 9))
}

func TestIsPing(t *testing.T) {
	assert.True(t, isPing([]byte("ping")))
	assert.True(t, isPing([]byte(`{"type":"ping"}`)))
	assert.False(t, isPing([]byte(`{"type":"hello"}`)))
	assert.False(t, isPing([]byte("pong")))
	assert.False(t, isPing([]byte("{broken")))
}
