package protocol

import "github.com/goran-ethernal/TzIndexor/pkg/model"

const (
	mainnetBlocksPerCycle   = 4096
	mainnetPreservedCycles  = 5
	mainnetRevelationReward = 125000
)

// Bootstrap protocols only produce levels 0 and 1. They carry no operations,
// are never stored and cannot be overridden.
var bootstrapProtocols = []model.Protocol{
	{Code: 0, Hash: "PrihK96nBAFSxVL1GLJTVhu9YnzkMFiBeuJRPA8NwuZVZCE1L6i", FirstLevel: 0},
	{Code: 0, Hash: "Ps9mPmXaRzmzk35gbAYNCAw6UGdvQZGpgL6ZY4DjR5ZpMm3dRr1", FirstLevel: 1},
}

// MainnetProtocols returns the constants of every supported mainnet protocol.
func MainnetProtocols() []model.Protocol {
	protos := []model.Protocol{
		{Code: 1, Hash: "PtCJ7pwoxe8JasnHY8YonnLYjcVHmhiARPJvqcC6VfHT5s8k8sY", FirstLevel: 2, BlockReward0: 16000000},
		{Code: 2, Hash: "PsYLVpVvgbLhAhoqAkMFUo6gudkJ9weNXhUYCiLDzcUpFpkk8Wt", FirstLevel: 28083, BlockReward0: 16000000},
		{Code: 3, Hash: "PsddFKi32cMJ2qPjf43Qv5GDWLDPZb3T3bF6fLKiF5HtvHNU7aP", FirstLevel: 204762, BlockReward0: 16000000},
		{Code: 4, Hash: "Pt24m4xiPbLDhVgVfABUjirbmda3yohdN82Sp9FeuAXJ4eV9otd", FirstLevel: 458753, BlockReward0: 16000000},
		{Code: 5, Hash: "PsBABY5HQTSkA4297zNHfsZNKtxULfL18y95qb3m53QJiXGmrbU", FirstLevel: 655361, BlockReward0: 1250000},
		{Code: 6, Hash: "PsBabyM1eUXZseaJdmXFApDSBqj8YBfwELoxZHHW77EMcAbbwAS", FirstLevel: 655361, BlockReward0: 1250000},
		{Code: 7, Hash: "PsCARTHAGazKbHtnKfLzQg3kms52kSRpgnDY982a9oYsSXRLQEb", FirstLevel: 851969, BlockReward0: 1250000},
	}

	for i := range protos {
		protos[i].BlocksPerCycle = mainnetBlocksPerCycle
		protos[i].PreservedCycles = mainnetPreservedCycles
		protos[i].RevelationReward = mainnetRevelationReward
	}

	return protos
}
