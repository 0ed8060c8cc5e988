package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j****@example.com", MaskEmail("jane@example.com"))
	assert.Equal(t, "****", MaskEmail("not-an-address"))
	assert.Equal(t, "", MaskEmail("  "))
}

func TestMaskDetails(t *testing.T) {
	out := MaskDetails(map[string]any{
		"student_email": "jane@example.com",
		"room_number":   "101",
		"changes": map[string]any{
			"previous_email": "old@example.com",
		},
		"": "dropped",
	})

	assert.Equal(t, "j****@example.com", out["student_email"])
	assert.Equal(t, "101", out["room_number"])
	assert.Equal(t, map[string]any{"previous_email": "o****@example.com"}, out["changes"])
	assert.NotContains(t, out, "")
	assert.Nil(t, MaskDetails(nil))
}
