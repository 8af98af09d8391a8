package ir

// Record type names. Each names the 8-byte discriminator of its layout.
const (
	RecordThread       = "MessageThread"
	RecordChannel      = "BroadcastChannel"
	RecordSubscription = "ChannelSubscription"
)

// MaxChannelNameLen is the longest channel name, in bytes.
const MaxChannelNameLen = 32

// Thread is one ongoing two-party conversation.
type Thread struct {
	ParticipantA  Pubkey   `json:"participant_a"`
	ParticipantB  Pubkey   `json:"participant_b"`
	ThreadID      ThreadID `json:"thread_id"`
	MessageCount  uint32   `json:"message_count"`
	CreatedAt     int64    `json:"created_at"`
	LastMessageAt int64    `json:"last_message_at"`
}

// Channel is a one-to-many broadcast feed owned by a single principal.
type Channel struct {
	Owner           Pubkey `json:"owner"`
	Name            string `json:"channel_name"`
	MessageCount    uint32 `json:"message_count"`
	SubscriberCount uint32 `json:"subscriber_count"`
	CreatedAt       int64  `json:"created_at"`
	LastBroadcastAt int64  `json:"last_broadcast_at"`
}

// Subscription is one subscriber's relationship to one channel.
// Channel is a lookup-only reference; nothing keeps it valid after the
// channel is closed.
type Subscription struct {
	Subscriber    Pubkey `json:"subscriber"`
	Channel       Pubkey `json:"channel"`
	SubscribedAt  int64  `json:"subscribed_at"`
	LastReadIndex uint32 `json:"last_read_index"`
}

// MarshalText renders the thread id as hex in JSON output.
func (id ThreadID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a hex thread id.
func (id *ThreadID) UnmarshalText(text []byte) error {
	parsed, err := ParseThreadID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
