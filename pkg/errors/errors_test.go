package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	err := Wrap(ErrWalletNotFound, "credit wallet")
	assert.EqualError(t, err, "credit wallet: wallet not found")
	assert.True(t, Is(err, ErrWalletNotFound))

	double := fmt.Errorf("outer: %w", err)
	assert.True(t, Is(double, ErrWalletNotFound))
	assert.False(t, Is(double, ErrIntentNotFound))
}
