package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("connection refused")
	err := New(base).
		Component("inference").
		Category(CategoryNetwork).
		Context("endpoint", "rice").
		Build()

	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, "inference", err.Component)
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.Equal(t, "rice", err.Context["endpoint"])
	assert.False(t, err.Timestamp.IsZero())
	assert.ErrorIs(t, err, base)
}

func TestErrorBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("something broke").Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	enhanced := Newf("log file is not open").
		Component("datastore").
		Category(CategoryFileIO).
		Build()

	assert.Equal(t, CategoryFileIO, GetCategory(enhanced))
	// The category survives further wrapping.
	assert.Equal(t, CategoryFileIO, GetCategory(fmt.Errorf("saving diagnosis: %w", enhanced)))
	// Plain errors fall back to the generic category.
	assert.Equal(t, CategoryGeneric, GetCategory(NewStd("plain")))
	assert.Equal(t, CategoryGeneric, GetCategory(nil))
}

func TestLogAttrs(t *testing.T) {
	t.Parallel()

	err := Newf("timed out").
		Component("inference").
		Category(CategoryTimeout).
		Context("endpoint", "plant").
		Build()

	attrs := err.LogAttrs()
	require.Len(t, attrs, 6)
	assert.Equal(t, "component", attrs[0])
	assert.Equal(t, "inference", attrs[1])
	assert.Equal(t, "category", attrs[2])
	assert.Equal(t, string(CategoryTimeout), attrs[3])
	assert.Equal(t, "endpoint", attrs[4])
	assert.Equal(t, "plant", attrs[5])
}

func TestEnhancedErrorIsSentinel(t *testing.T) {
	t.Parallel()

	err := New(fmt.Errorf("%w: unexpected status 502", ErrInferenceUnavailable)).
		Component("inference").
		Category(CategoryInferenceAPI).
		Build()

	assert.ErrorIs(t, err, ErrInferenceUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}
