package simbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

func write(t *testing.T, l *Link, f slcan.Frame) {
	t.Helper()
	line, err := slcan.Encode(f)
	require.NoError(t, err)
	require.NoError(t, l.WriteLine(line))
}

func read(t *testing.T, l *Link) []slcan.Frame {
	t.Helper()
	data, err := l.ReadAvailable()
	require.NoError(t, err)
	frames, malformed := slcan.Decode(data)
	require.Empty(t, malformed)
	return frames
}

func TestLinkAnswersHandledCommands(t *testing.T) {
	l := New().Handle(2, Accept(slcan.PackUint32(0x010203)))

	write(t, l, slcan.Frame{Address: 5, Command: 2, UID: 7})
	write(t, l, slcan.Frame{Address: 5, Command: 3, UID: 8})

	frames := read(t, l)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(5), frames[0].Address)
	assert.Equal(t, uint8(2), frames[0].Command)
	assert.Equal(t, uint8(7), frames[0].UID)
	assert.Equal(t, slcan.PackUint32(0x010203), frames[0].Payload)

	assert.Len(t, l.Sent(), 2)
	assert.Len(t, l.SentCommand(3), 1)
	assert.Len(t, l.Lines(), 2)
	assert.Empty(t, read(t, l), "replies are read once")
}

func TestLinkDefaultResponder(t *testing.T) {
	l := New().Handle(2, Silent()).HandleDefault(Reject(13))

	write(t, l, slcan.Frame{Address: 1, Command: 2})
	write(t, l, slcan.Frame{Address: 1, Command: 40})

	frames := read(t, l)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(40), frames[0].Command)
	assert.Equal(t, uint8(13), frames[0].Code)
}

func TestLinkDelay(t *testing.T) {
	l := New().HandleDefault(Accept(nil))
	l.SetDelay(30 * time.Millisecond)

	write(t, l, slcan.Frame{Address: 1, Command: 1})
	assert.Empty(t, read(t, l))

	assert.Eventually(t, func() bool {
		data, err := l.ReadAvailable()
		return err == nil && len(data) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestLinkInject(t *testing.T) {
	l := New()
	l.Inject(slcan.Frame{Address: 3, Command: 9, UID: 1})
	l.InjectRaw([]byte("Tgarbage\r"))

	data, err := l.ReadAvailable()
	require.NoError(t, err)
	frames, malformed := slcan.Decode(data)
	require.Len(t, frames, 1)
	assert.Equal(t, uint16(3), frames[0].Address)
	assert.Len(t, malformed, 1)
}

func TestLinkFailures(t *testing.T) {
	l := New()
	boom := errors.New("boom")

	l.FailWrites(boom)
	assert.ErrorIs(t, l.WriteLine([]byte("T0000000000\r")), boom)
	l.FailWrites(nil)
	assert.NoError(t, l.WriteLine([]byte("T0000000000\r")))

	l.FailReads(boom)
	_, err := l.ReadAvailable()
	assert.ErrorIs(t, err, boom)
	l.FailReads(nil)

	require.NoError(t, l.Close())
	assert.True(t, l.Closed())
	assert.ErrorIs(t, l.WriteLine([]byte("T0000000000\r")), ErrClosed)
	_, err = l.ReadAvailable()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSequence(t *testing.T) {
	r := Sequence(Reject(3), Accept(nil))
	req := slcan.Frame{Address: 4, Command: 30, UID: 2}

	assert.Equal(t, uint8(3), r(req)[0].Code)
	assert.Equal(t, uint8(0), r(req)[0].Code)
	assert.Equal(t, uint8(0), r(req)[0].Code, "last responder repeats")
}

func TestDevices(t *testing.T) {
	r := Devices(func(a uint16) []byte { return slcan.PackUint32(int64(a)) }, 4, 9)

	all := r(slcan.Frame{Address: slcan.BroadcastAddress, Command: 2, UID: 1})
	require.Len(t, all, 2)
	assert.Equal(t, uint16(4), all[0].Address)
	assert.Equal(t, uint16(9), all[1].Address)
	assert.Equal(t, slcan.PackUint32(9), all[1].Payload)

	one := r(slcan.Frame{Address: 9, Command: 2, UID: 1})
	require.Len(t, one, 1)
	assert.Equal(t, uint16(9), one[0].Address)

	assert.Empty(t, r(slcan.Frame{Address: 5, Command: 2}))
}
