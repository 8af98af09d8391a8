package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Allocated sizes, discriminator included. Channels reserve room for the
// longest name so an account never needs to grow.
const (
	DiscriminatorSize = 8
	ThreadSpace       = DiscriminatorSize + 32 + 32 + 32 + 4 + 8 + 8
	ChannelSpace      = DiscriminatorSize + 32 + (4 + MaxChannelNameLen) + 4 + 4 + 8 + 8
	SubscriptionSpace = DiscriminatorSize + 32 + 32 + 8 + 4
)

var (
	// ErrDiscriminatorMismatch means the data belongs to another record type.
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	// ErrShortData means the data ended before the layout did.
	ErrShortData = errors.New("account data too short")
)

var (
	threadDisc       = Discriminator(RecordThread)
	channelDisc      = Discriminator(RecordChannel)
	subscriptionDisc = Discriminator(RecordSubscription)
)

// writer appends little-endian fields into a fixed-size buffer.
type writer struct {
	buf []byte
	off int
}

func newWriter(space int, disc [8]byte) *writer {
	w := &writer{buf: make([]byte, space)}
	w.bytes(disc[:])
	return w
}

func (w *writer) bytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) i64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], uint64(v))
	w.off += 8
}

// reader consumes little-endian fields and remembers the first error.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(data []byte, disc [8]byte) *reader {
	r := &reader{buf: data}
	if len(data) < DiscriminatorSize {
		r.err = ErrShortData
		return r
	}
	if [8]byte(data[:DiscriminatorSize]) != disc {
		r.err = ErrDiscriminatorMismatch
		return r
	}
	r.off = DiscriminatorSize
	return r
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = ErrShortData
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) key() (p Pubkey) {
	copy(p[:], r.take(PubkeySize))
	return p
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// EncodeThread serializes a thread into its ThreadSpace-byte layout.
func EncodeThread(t Thread) []byte {
	w := newWriter(ThreadSpace, threadDisc)
	w.bytes(t.ParticipantA[:])
	w.bytes(t.ParticipantB[:])
	w.bytes(t.ThreadID[:])
	w.u32(t.MessageCount)
	w.i64(t.CreatedAt)
	w.i64(t.LastMessageAt)
	return w.buf
}

// DecodeThread parses a thread layout.
func DecodeThread(data []byte) (Thread, error) {
	r := newReader(data, threadDisc)
	var t Thread
	t.ParticipantA = r.key()
	t.ParticipantB = r.key()
	copy(t.ThreadID[:], r.take(32))
	t.MessageCount = r.u32()
	t.CreatedAt = r.i64()
	t.LastMessageAt = r.i64()
	if r.err != nil {
		return Thread{}, fmt.Errorf("decode %s: %w", RecordThread, r.err)
	}
	return t, nil
}

// EncodeChannel serializes a channel into its ChannelSpace-byte layout.
// The name is written with a u32 length prefix; the tail stays zeroed.
func EncodeChannel(c Channel) ([]byte, error) {
	if len(c.Name) > MaxChannelNameLen {
		return nil, fmt.Errorf("encode %s: name is %d bytes, max %d", RecordChannel, len(c.Name), MaxChannelNameLen)
	}
	w := newWriter(ChannelSpace, channelDisc)
	w.bytes(c.Owner[:])
	w.u32(uint32(len(c.Name)))
	w.bytes([]byte(c.Name))
	w.u32(c.MessageCount)
	w.u32(c.SubscriberCount)
	w.i64(c.CreatedAt)
	w.i64(c.LastBroadcastAt)
	return w.buf, nil
}

// DecodeChannel parses a channel layout.
func DecodeChannel(data []byte) (Channel, error) {
	r := newReader(data, channelDisc)
	var c Channel
	c.Owner = r.key()
	n := r.u32()
	if r.err == nil && n > MaxChannelNameLen {
		return Channel{}, fmt.Errorf("decode %s: name length %d exceeds %d", RecordChannel, n, MaxChannelNameLen)
	}
	name := r.take(int(n))
	if r.err == nil && !utf8.Valid(name) {
		return Channel{}, fmt.Errorf("decode %s: name is not valid UTF-8", RecordChannel)
	}
	c.Name = string(name)
	c.MessageCount = r.u32()
	c.SubscriberCount = r.u32()
	c.CreatedAt = r.i64()
	c.LastBroadcastAt = r.i64()
	if r.err != nil {
		return Channel{}, fmt.Errorf("decode %s: %w", RecordChannel, r.err)
	}
	return c, nil
}

// EncodeSubscription serializes a subscription into its SubscriptionSpace-byte layout.
func EncodeSubscription(s Subscription) []byte {
	w := newWriter(SubscriptionSpace, subscriptionDisc)
	w.bytes(s.Subscriber[:])
	w.bytes(s.Channel[:])
	w.i64(s.SubscribedAt)
	w.u32(s.LastReadIndex)
	return w.buf
}

// DecodeSubscription parses a subscription layout.
func DecodeSubscription(data []byte) (Subscription, error) {
	r := newReader(data, subscriptionDisc)
	var s Subscription
	s.Subscriber = r.key()
	s.Channel = r.key()
	s.SubscribedAt = r.i64()
	s.LastReadIndex = r.u32()
	if r.err != nil {
		return Subscription{}, fmt.Errorf("decode %s: %w", RecordSubscription, r.err)
	}
	return s, nil
}

// RecordType reports which record layout data carries, or "" if none.
func RecordType(data []byte) string {
	if len(data) < DiscriminatorSize {
		return ""
	}
	switch [8]byte(data[:DiscriminatorSize]) {
	case threadDisc:
		return RecordThread
	case channelDisc:
		return RecordChannel
	case subscriptionDisc:
		return RecordSubscription
	}
	return ""
}

// DecodeRecord parses data into whichever record type its discriminator
// names. Returns the type name and the decoded value.
func DecodeRecord(data []byte) (string, any, error) {
	switch kind := RecordType(data); kind {
	case RecordThread:
		t, err := DecodeThread(data)
		return kind, t, err
	case RecordChannel:
		c, err := DecodeChannel(data)
		return kind, c, err
	case RecordSubscription:
		s, err := DecodeSubscription(data)
		return kind, s, err
	}
	return "", nil, ErrDiscriminatorMismatch
}
