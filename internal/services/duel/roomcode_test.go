package duel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/neurodash/internal/dependencies/random"
	"github.com/mcoot/neurodash/internal/model"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		raw     string
		want    model.RoomCode
		wantErr bool
	}{
		{raw: "ABC123", want: "ABC123"},
		{raw: "abc123", want: "ABC123"},
		{raw: "  xyz789\t", want: "XYZ789"},
		{raw: "O0I1LQ", want: "O0I1LQ"},
		{raw: "", wantErr: true},
		{raw: "ABC12", wantErr: true},
		{raw: "ABC1234", wantErr: true},
		{raw: "AB C12", wantErr: true},
		{raw: "ABC-12", wantErr: true},
		{raw: "ABCé1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidRoomCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeneratedRoomCodesNormalizeToThemselves(t *testing.T) {
	r := random.New()
	for _n := 0; _n < 100; _n++ {
		code := r.String(RoomCodeLength, RoomCodeAlphabet)
		got, err := NormalizeRoomCode(strings.ToLower(code))
		require.NoError(t, err)
		assert.Equal(t, model.RoomCode(code), got)
	}
}
