package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderString(t *testing.T) {
	e := NewEncoder()
	e.String("AB")

	// MaxCount=3, Offset=0, ActualCount=3, "A\0B\0\0\0", 2 bytes padding
	want := []byte{
		3, 0, 0, 0,
		0, 0, 0, 0,
		3, 0, 0, 0,
		'A', 0, 'B', 0, 0, 0,
		0, 0,
	}
	assert.Equal(t, want, e.Bytes())
}

func TestEncoderPointerReferents(t *testing.T) {
	e := NewEncoder()
	e.Pointer(true)
	e.Pointer(false)
	e.Pointer(true)

	d := NewDecoder(e.Bytes())
	assert.Equal(t, uint32(0x00020000), d.Uint32())
	assert.Equal(t, uint32(0), d.Uint32())
	assert.Equal(t, uint32(0x00020004), d.Uint32())
	require.NoError(t, d.Err())
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "IPC$", "Données partagées", "テスト", "archive 🗄️"} {
		e := NewEncoder()
		e.String(s)
		e.Uint32(0xCAFEBABE)

		d := NewDecoder(e.Bytes())
		assert.Equal(t, s, d.String())
		assert.Equal(t, uint32(0xCAFEBABE), d.Uint32(), "alignment after %q", s)
		require.NoError(t, d.Err())
	}
}

func TestDecoderErrorsAreSticky(t *testing.T) {
	d := NewDecoder([]byte{1, 0})

	assert.Equal(t, uint32(0), d.Uint32())
	require.ErrorIs(t, d.Err(), ErrShortBuffer)

	first := d.Err()
	assert.Equal(t, "", d.String())
	assert.Equal(t, first, d.Err())
}

func TestDecoderRejectsInvalidStringHeader(t *testing.T) {
	e := NewEncoder()
	e.Uint32(2) // MaxCount
	e.Uint32(0) // Offset
	e.Uint32(5) // ActualCount > MaxCount

	d := NewDecoder(e.Bytes())
	_ = d.String()
	assert.Error(t, d.Err())
}
