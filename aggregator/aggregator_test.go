package aggregator

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEscapeHatchOpenDefaultsFalse(t *testing.T) {
	a := &Aggregator{}
	assert.False(t, a.isEscapeHatchOpen())
}

func TestIsEscapeHatchOpenReflectsFlag(t *testing.T) {
	a := &Aggregator{}
	atomic.StoreInt32(&a.escapeHatchOpen, 1)
	assert.True(t, a.isEscapeHatchOpen())

	atomic.StoreInt32(&a.escapeHatchOpen, 0)
	assert.False(t, a.isEscapeHatchOpen())
}
