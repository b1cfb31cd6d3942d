package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterEmpty(t *testing.T) {
	expr, err := ParseFilter("")
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestParseFilterSimpleComparison(t *testing.T) {
	expr, err := ParseFilter("rating gt 3.5")
	require.NoError(t, err)
	assert.True(t, expr.Eval(map[string]interface{}{"rating": 4.0}))
	assert.False(t, expr.Eval(map[string]interface{}{"rating": 3.0}))
}

func TestParseFilterAndOrNot(t *testing.T) {
	expr, err := ParseFilter("rating ge 3 and (category eq 'spa' or category eq 'resort')")
	require.NoError(t, err)
	assert.True(t, expr.Eval(map[string]interface{}{"rating": 4.0, "category": "spa"}))
	assert.False(t, expr.Eval(map[string]interface{}{"rating": 2.0, "category": "spa"}))
	assert.False(t, expr.Eval(map[string]interface{}{"rating": 4.0, "category": "motel"}))

	notExpr, err := ParseFilter("not (category eq 'motel')")
	require.NoError(t, err)
	assert.True(t, notExpr.Eval(map[string]interface{}{"category": "resort"}))
	assert.False(t, notExpr.Eval(map[string]interface{}{"category": "motel"}))
}

func TestParseFilterSearchIn(t *testing.T) {
	expr, err := ParseFilter("search.in(category,'spa,resort,motel')")
	require.NoError(t, err)
	assert.True(t, expr.Eval(map[string]interface{}{"category": "resort"}))
	assert.False(t, expr.Eval(map[string]interface{}{"category": "hostel"}))
}

func TestParseFilterBoolean(t *testing.T) {
	expr, err := ParseFilter("parkingIncluded eq true")
	require.NoError(t, err)
	assert.True(t, expr.Eval(map[string]interface{}{"parkingIncluded": true}))
	assert.False(t, expr.Eval(map[string]interface{}{"parkingIncluded": false}))
}

func TestParseFilterRejectsUnsupportedOperator(t *testing.T) {
	_, err := ParseFilter("rating xx 3")
	assert.Error(t, err)
}

func TestParseFilterMissingFieldIsFalse(t *testing.T) {
	expr, err := ParseFilter("rating gt 3")
	require.NoError(t, err)
	assert.False(t, expr.Eval(map[string]interface{}{}))
}
