package coupon

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableError(t *testing.T) {
	err := errors.Wrap(&UnavailableError{Err: context.DeadlineExceeded}, "validate coupon")

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "coupon validation unavailable")
}
