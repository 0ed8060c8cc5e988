package domainerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchesKindAndCode(t *testing.T) {
	errMissing := New(ErrNotFound, "widget_not_found")
	wrapped := fmt.Errorf("load widget: %w", errMissing)

	assert.ErrorIs(t, wrapped, errMissing)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, ErrNotFound, KindOf(wrapped))
	assert.Equal(t, "widget_not_found", CodeOf(wrapped))
	assert.Equal(t, "widget_not_found", errMissing.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("boom")))
	assert.Empty(t, CodeOf(errors.New("boom")))
}
