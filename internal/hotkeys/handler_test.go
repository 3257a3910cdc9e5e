package hotkeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindings(t *testing.T) {
	tests := []struct {
		name     string
		all, one string
		want     []Binding
	}{
		{
			name: "both",
			all:  "Mod4-Mod1-h",
			one:  "Mod4-Mod1-j",
			want: []Binding{
				{Name: "recover-all", Keys: "Mod4-Mod1-h", Limit: 0},
				{Name: "recover-one", Keys: "Mod4-Mod1-j", Limit: 1},
			},
		},
		{
			name: "recover one disabled",
			all:  "Mod4-Mod1-h",
			want: []Binding{{Name: "recover-all", Keys: "Mod4-Mod1-h", Limit: 0}},
		},
		{
			name: "none",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bindings(tt.all, tt.one))
		})
	}
}

func TestIgnoreMasks(t *testing.T) {
	assert.Equal(t, []uint16{0, 2}, ignoreMasks([]uint16{2}))
	assert.Equal(t, []uint16{0, 2, 16, 18}, ignoreMasks([]uint16{2, 16}))
	assert.Equal(t, []uint16{0, 2, 16, 18, 128, 130, 144, 146}, ignoreMasks([]uint16{2, 16, 128}))
}
