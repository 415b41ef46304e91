package utils

import (
	"testing"

	"brain2-canvas/pkg/api"

	"github.com/stretchr/testify/assert"
)

func TestValidateStruct(t *testing.T) {
	t.Run("Should require both coordinates", func(t *testing.T) {
		x := 1.0
		err := ValidateStruct(api.SavePositionRequest{X: &x})
		assert.EqualError(t, err, "y is required")
	})

	t.Run("Should reject an empty batch", func(t *testing.T) {
		err := ValidateStruct(api.BatchSavePositionRequest{Positions: []api.BatchPositionEntry{}})
		assert.Error(t, err)
	})

	t.Run("Should validate batch entries", func(t *testing.T) {
		err := ValidateStruct(api.BatchSavePositionRequest{
			Positions: []api.BatchPositionEntry{{Kind: "dot"}},
		})
		assert.EqualError(t, err, "id is required")
	})

	t.Run("Should accept a null parent", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(api.MapDotToWheelRequest{}))
		empty := ""
		assert.Error(t, ValidateStruct(api.MapDotToWheelRequest{WheelID: &empty}))
	})
}
