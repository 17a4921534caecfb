package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event DataEvent
		size  int
	}{
		{name: "motion center", event: Motion{X: 0.5, Y: 0.5, Pressure: 1.0}, size: MotionFrameSize},
		{name: "motion origin", event: Motion{}, size: MotionFrameSize},
		{name: "motion corner", event: Motion{X: 1, Y: 1, Pressure: 0.25}, size: MotionFrameSize},
		{name: "motion fractional", event: Motion{X: 0.123456, Y: 0.987654, Pressure: 0.333}, size: MotionFrameSize},
		{name: "button pressed", event: Button{ID: 1, Pressed: true}, size: ButtonFrameSize},
		{name: "button released", event: Button{ID: 255, Pressed: false}, size: ButtonFrameSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Encode(tt.event)
			assert.Len(t, frame, tt.size)
			assert.Equal(t, byte(tt.event.Tag()), frame[0])

			decoded, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.event, decoded)
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	t.Run("motion is little endian float32", func(t *testing.T) {
		frame := Encode(Motion{X: 1.0, Y: 0.5, Pressure: 0})
		assert.Equal(t, []byte{
			0x01,
			0x00, 0x00, 0x80, 0x3f, // 1.0
			0x00, 0x00, 0x00, 0x3f, // 0.5
			0x00, 0x00, 0x00, 0x00,
		}, frame)
	})

	t.Run("button carries id and flag", func(t *testing.T) {
		assert.Equal(t, []byte{0x02, 0x07, 0x01}, Encode(Button{ID: 7, Pressed: true}))
		assert.Equal(t, []byte{0x02, 0x07, 0x00}, Encode(Button{ID: 7, Pressed: false}))
	})

	t.Run("append reuses buffer", func(t *testing.T) {
		buf := make([]byte, 0, MaxFrameSize)
		buf = AppendFrame(buf, Button{ID: 3, Pressed: true})
		assert.Equal(t, []byte{0x02, 0x03, 0x01}, buf)

		buf = AppendFrame(buf[:0], Motion{})
		assert.Len(t, buf, MotionFrameSize)
		assert.Equal(t, MaxFrameSize, cap(buf))
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{name: "empty", input: nil, wantErr: ErrTruncated},
		{name: "motion tag only", input: []byte{0x01}, wantErr: ErrTruncated},
		{name: "motion short body", input: []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, wantErr: ErrTruncated},
		{name: "button short body", input: []byte{0x02, 0x01}, wantErr: ErrTruncated},
		{name: "zero tag", input: []byte{0x00, 0x01, 0x02}, wantErr: ErrUnknownTag},
		{name: "high tag", input: []byte{0xff}, wantErr: ErrUnknownTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := Decode(tt.input)
			assert.Nil(t, event)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_Lenient(t *testing.T) {
	t.Run("trailing bytes are ignored", func(t *testing.T) {
		frame := append(Encode(Button{ID: 2, Pressed: true}), 0xde, 0xad)
		event, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, Button{ID: 2, Pressed: true}, event)
	})

	t.Run("any non-zero flag means pressed", func(t *testing.T) {
		event, err := Decode([]byte{0x02, 0x01, 0x7f})
		require.NoError(t, err)
		assert.Equal(t, Button{ID: 1, Pressed: true}, event)
	})
}

func TestMotion_Clamp(t *testing.T) {
	assert.Equal(t, Motion{X: 0, Y: 1, Pressure: 0.5}, Motion{X: -0.2, Y: 1.7, Pressure: 0.5}.Clamp())
	assert.Equal(t, Motion{X: 0.25, Y: 0.75, Pressure: 1}, Motion{X: 0.25, Y: 0.75, Pressure: 1}.Clamp())
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "motion", TagMotion.String())
	assert.Equal(t, "button", TagButton.String())
	assert.Equal(t, "tag(0x7f)", Tag(0x7f).String())
}
