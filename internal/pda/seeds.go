package pda

import "github.com/roach88/ledgermsg/internal/ir"

// Domain tags for the three record kinds. These are part of the address
// derivation and must never change.
const (
	TagThread       = "message_thread"
	TagChannel      = "broadcast_channel"
	TagSubscription = "subscription"
)

// ThreadSeeds returns the derivation inputs of a thread.
func ThreadSeeds(a, b ir.Pubkey, id ir.ThreadID) [][]byte {
	return [][]byte{[]byte(TagThread), a[:], b[:], id[:]}
}

// ChannelSeeds returns the derivation inputs of a channel. The name is
// used as raw bytes; callers enforce the 32-byte limit first.
func ChannelSeeds(owner ir.Pubkey, name string) [][]byte {
	return [][]byte{[]byte(TagChannel), owner[:], []byte(name)}
}

// SubscriptionSeeds returns the derivation inputs of a subscription.
func SubscriptionSeeds(channel, subscriber ir.Pubkey) [][]byte {
	return [][]byte{[]byte(TagSubscription), channel[:], subscriber[:]}
}

// ThreadAddress derives the address of the thread between a and b with id.
func ThreadAddress(programID, a, b ir.Pubkey, id ir.ThreadID) (ir.Pubkey, uint8, error) {
	return FindProgramAddress(ThreadSeeds(a, b, id), programID)
}

// ChannelAddress derives the address of owner's channel called name.
func ChannelAddress(programID, owner ir.Pubkey, name string) (ir.Pubkey, uint8, error) {
	return FindProgramAddress(ChannelSeeds(owner, name), programID)
}

// SubscriptionAddress derives the address of subscriber's subscription to channel.
func SubscriptionAddress(programID, channel, subscriber ir.Pubkey) (ir.Pubkey, uint8, error) {
	return FindProgramAddress(SubscriptionSeeds(channel, subscriber), programID)
}
