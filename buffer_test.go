package tldk

import "testing"

func TestPoolBufferReserveAndBytes(t *testing.T) {
	b := NewPoolBuffer()
	b.Append([]byte("payload"))
	if string(b.Bytes()) != "payload" {
		t.Fatalf("Bytes() = %q, want %q", b.Bytes(), "payload")
	}

	hdr := b.Reserve(4)
	copy(hdr, []byte{1, 2, 3, 4})
	if len(b.Bytes()) != 4+len("payload") {
		t.Fatalf("Bytes() length after Reserve = %d, want %d", len(b.Bytes()), 4+len("payload"))
	}
	if string(b.Bytes()[4:]) != "payload" {
		t.Fatalf("payload shifted unexpectedly after Reserve: %q", b.Bytes())
	}
}

func TestPoolBufferReservePanicsBeyondHeadroom(t *testing.T) {
	b := NewPoolBuffer()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic reserving more than the available headroom")
		}
	}()
	b.Reserve(defaultHeadroom + 1)
}

func TestPoolBufferCloneIsIndependent(t *testing.T) {
	b := NewPoolBuffer()
	b.Append([]byte("hello"))

	clone := b.Clone()
	b.Release()

	if string(clone.Bytes()) != "hello" {
		t.Fatalf("clone.Bytes() = %q, want %q after the original was released", clone.Bytes(), "hello")
	}
}

func TestPoolBufferReleaseAllowsReuse(t *testing.T) {
	b := NewPoolBuffer()
	b.Append([]byte("reused"))
	b.Release()

	b2 := NewPoolBuffer()
	if len(b2.Bytes()) != 0 {
		t.Fatalf("a freshly obtained PoolBuffer should start with no data, got %q", b2.Bytes())
	}
}

func TestNewBufferWithPayloadCopiesInput(t *testing.T) {
	src := []byte("copy me")
	b := NewBufferWithPayload(src)
	src[0] = 'X'
	if string(b.Bytes()) != "copy me" {
		t.Fatalf("Bytes() = %q, want the buffer unaffected by later mutation of the source slice", b.Bytes())
	}
}
