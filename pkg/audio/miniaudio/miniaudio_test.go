package miniaudio

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestChunkerRegroupsCallbacks(t *testing.T) {
	is := is.New(t)
	c := newChunker(16000, 1)

	is.Equal(len(c.push(make([]byte, 100))), 0)
	frames := c.push(make([]byte, 700)) // 800 bytes buffered, two 320-byte frames
	is.Equal(len(frames), 2)
	is.Equal(frames[0].SamplesPerChannel, 160)
	is.Equal(frames[1].Timestamp, 10*time.Millisecond)
	is.Equal(len(c.buf), 160)
}

func TestQueueDrainsAfterFinish(t *testing.T) {
	is := is.New(t)
	q := newQueue()
	q.push([]byte{1, 2, 3, 4})

	out := make([]byte, 3)
	is.Equal(q.pull(out), 3)
	is.Equal(out, []byte{1, 2, 3})

	q.finish()
	select {
	case <-q.drained:
		t.Fatal("drained with audio left")
	default:
	}

	is.Equal(q.pull(out), 1)
	is.Equal(out, []byte{4, 0, 0})
	select {
	case <-q.drained:
	default:
		t.Fatal("not drained")
	}
}

func TestQueueFinishWhenEmpty(t *testing.T) {
	q := newQueue()
	q.finish()
	select {
	case <-q.drained:
	default:
		t.Fatal("empty queue should drain on finish")
	}
}

func TestPermissionDenied(t *testing.T) {
	is := is.New(t)
	is.True(permissionDenied(errors.New("Access denied.")))
	is.True(!permissionDenied(errors.New("no backend")))
}
