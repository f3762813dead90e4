package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/davidmarcano/storefront-backend/pkg/errors"
)

func TestTranslateErrorTimeout(t *testing.T) {
	err := TranslateError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeTimeout, typed.Code())
}

func TestTranslateErrorPassthrough(t *testing.T) {
	require.NoError(t, TranslateError(nil))

	base := errors.New("boom")
	assert.Equal(t, base, TranslateError(base))
}

func TestOperationContextSetsDeadline(t *testing.T) {
	ctx, cancel := OperationContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultOperationTimeout), deadline, time.Second)
}

func TestOperationContextKeepsTighterParentDeadline(t *testing.T) {
	parent, parentCancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer parentCancel()

	ctx, cancel := OperationContext(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Before(time.Now().Add(DefaultOperationTimeout)))
}
