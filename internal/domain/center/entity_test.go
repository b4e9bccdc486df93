package center

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepartment(t *testing.T) {
	tests := []struct {
		postal string
		want   string
	}{
		{"75011", "75"},
		{"  13001 ", "13"},
		{"2A004", "2A"},
		{"9", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.postal, func(t *testing.T) {
			assert.Equal(t, tt.want, Department(tt.postal))
		})
	}
}

func TestCenter_Validate(t *testing.T) {
	assert.Error(t, (&Center{ID: " "}).Validate())
	assert.NoError(t, (&Center{ID: "c1", PostalCode: "69003"}).Validate())
	assert.Equal(t, "69", (&Center{ID: "c1", PostalCode: "69003"}).Department())
}
