package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"empty", "", true},
		{"minimal", `{"id":"minecraft:diamond"}`, true},
		{"full", `{"id":"minecraft:diamond_sword","count":1,"display_name":"Blade","lore":["sharp"],"nbt":{"Damage":0}}`, true},
		{"not json", `{"id":`, false},
		{"missing id", `{"count":2}`, false},
		{"count too big", `{"id":"minecraft:stone","count":65}`, false},
		{"fractional count", `{"id":"minecraft:stone","count":1.5}`, false},
		{"unknown field", `{"id":"minecraft:stone","colour":"red"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.raw)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTemplate)
			}
		})
	}
}
