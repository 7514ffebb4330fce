package domain

// Blockhash is a recent blockhash and the last block height at which a
// transaction referencing it is still valid.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}

// Simulation is the result of a dry-run. Err is nil when the simulated
// transaction would succeed.
type Simulation struct {
	Err           any
	Logs          []string
	UnitsConsumed uint64
}

// Failed reports whether the simulation returned an execution error.
func (s *Simulation) Failed() bool {
	return s != nil && s.Err != nil
}
