package input

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		chord   string
		want    Binding
		wantErr bool
	}{
		{chord: "super+q", want: Binding{Mods: ModSuper, Code: 16}},
		{chord: "super+shift+e", want: Binding{Mods: ModSuper | ModShift, Code: 18}},
		{chord: "ctrl+alt+f1", want: Binding{Mods: ModCtrl | ModAlt, Code: 59}},
		{chord: "Super+Enter", want: Binding{Mods: ModSuper, Code: 28}},
		{chord: "mod4+space", want: Binding{Mods: ModSuper, Code: 57}},
		{chord: "q", want: Binding{Code: 16}},
		{chord: "super+", wantErr: true},
		{chord: "super", wantErr: true},
		{chord: "super+qq", wantErr: true},
		{chord: "q+super", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.chord, func(t *testing.T) {
			got, err := ParseBinding(tt.chord)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseBindings(t *testing.T) {
	b, err := ParseBindings(map[string]string{
		"super+q":     "close",
		"super+enter": "spawn-terminal",
	})
	require.NoError(t, err)

	action, ok := b.Lookup(ModSuper, 16)
	require.True(t, ok)
	require.Equal(t, "close", action)

	_, ok = b.Lookup(ModSuper|ModShift, 16)
	require.False(t, ok, "extra modifiers must not match")

	_, err = ParseBindings(map[string]string{"bogus+key": "x"})
	require.Error(t, err)
}
