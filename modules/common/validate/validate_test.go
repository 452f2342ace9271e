package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/apperr"
)

type inner struct {
	Gender string `json:"gender" validate:"omitempty,oneof=male female"`
}

type sample struct {
	Amount int    `json:"amount" validate:"required,min=1,max=100"`
	Model  *inner `json:"model"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(sample{Amount: 5}))
	assert.NoError(t, Struct(sample{Amount: 5, Model: &inner{Gender: "female"}}))

	err := Struct(sample{})
	require.ErrorIs(t, err, apperr.ErrValidation)
	var fe *apperr.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "amount", fe.Field)
	assert.Equal(t, "this field is required", fe.Message)

	err = Struct(sample{Amount: 500})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "must be at most 100", fe.Message)

	err = Struct(sample{Amount: 1, Model: &inner{Gender: "robot"}})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "model.gender", fe.Field)
	assert.Equal(t, "must be one of: male, female", fe.Message)
}
