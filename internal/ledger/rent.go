package ledger

// Rent is the storage-deposit schedule. Every program account must hold
// at least MinimumBalance(len(data)) lamports; creating a record debits
// exactly that amount from the payer and closing it refunds all of it.
type Rent struct {
	// Overhead is the per-account byte cost charged on top of the data.
	Overhead uint64 `yaml:"overhead" json:"overhead"`
	// LamportsPerByte is the deposit per stored byte.
	LamportsPerByte uint64 `yaml:"lamports_per_byte" json:"lamports_per_byte"`
}

// DefaultRent matches the reference network's exemption threshold:
// 3480 lamports per byte-year over two years.
var DefaultRent = Rent{Overhead: 128, LamportsPerByte: 6960}

// MinimumBalance returns the deposit required for an account holding
// space bytes of data.
func (r Rent) MinimumBalance(space int) uint64 {
	return (r.Overhead + uint64(space)) * r.LamportsPerByte
}
