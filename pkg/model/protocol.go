package model

// Protocol holds the constants of one protocol version.
// Instances are shared read-only across every block of that version.
type Protocol struct {
	Code             int    `meddler:"code,pk" json:"code"`
	Hash             string `meddler:"hash" json:"hash"`
	FirstLevel       int64  `meddler:"first_level" json:"first_level"`
	BlocksPerCycle   int64  `meddler:"blocks_per_cycle" json:"blocks_per_cycle"`
	PreservedCycles  int64  `meddler:"preserved_cycles" json:"preserved_cycles"`
	BlockReward0     int64  `meddler:"block_reward0" json:"block_reward0"`
	RevelationReward int64  `meddler:"revelation_reward" json:"revelation_reward"`
}

// Cycle returns the cycle a level belongs to.
func (p *Protocol) Cycle(level int64) int64 {
	return (level - 1) / p.BlocksPerCycle
}

// IsCycleEnd reports whether level is the last block of its cycle.
func (p *Protocol) IsCycleEnd(level int64) bool {
	return level%p.BlocksPerCycle == 0
}
