package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStore(t *testing.T) {
	valid := `{
		"metadata": {"created": "2025-01-01T00:00:00Z", "last_updated": "2025-01-02T00:00:00Z", "total_jobs": 1},
		"jobs": {"10001-1": {"id": "10001-1", "title": "Go Dev", "first_seen": "2025-01-01T00:00:00Z", "last_seen": "2025-01-01T00:00:00Z"}}
	}`
	require.NoError(t, ValidateStore([]byte(valid)))

	t.Run("missing jobs", func(t *testing.T) {
		err := ValidateStore([]byte(`{"metadata": {"created": "", "last_updated": "", "total_jobs": 0}}`))
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.NotEmpty(t, ve.Errors)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateStore([]byte(`{"metadata": {"created": "", "last_updated": "", "total_jobs": "many"}, "jobs": {}}`))
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Error(), "total_jobs")
	})

	t.Run("area and searches", func(t *testing.T) {
		withArea := `{"metadata": {"created": "", "last_updated": "", "total_jobs": 0,
			"area": {"location": "Köln", "radius_km": 25},
			"searches": [{"query": "Go", "location": "Köln", "first_match": "2025-01-01T00:00:00Z"}]}, "jobs": {}}`
		require.NoError(t, ValidateStore([]byte(withArea)))

		err := ValidateStore([]byte(`{"metadata": {"created": "", "last_updated": "", "total_jobs": 0, "area": {"location": "Köln"}}, "jobs": {}}`))
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Error(), "radius_km")
	})

	t.Run("not json", func(t *testing.T) {
		err := ValidateStore([]byte(`{"metadata": `))
		require.Error(t, err)
	})
}

func TestValidateCheckpoint(t *testing.T) {
	valid := `{"version": 1, "items_fingerprint": "abc", "total_items": 10, "completed_items": ["a", "b"], "batch_size": 3}`
	require.NoError(t, ValidateCheckpoint([]byte(valid)))

	err := ValidateCheckpoint([]byte(`{"version": 1, "items_fingerprint": "abc", "total_items": 10, "completed_items": "a,b", "batch_size": 3}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestValidatePartialResults(t *testing.T) {
	require.NoError(t, ValidatePartialResults([]byte(`[{"id": "a", "categories": ["Andere"]}]`)))
	require.Error(t, ValidatePartialResults([]byte(`[{"id": "a", "categories": []}]`)))
}
