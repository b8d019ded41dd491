package common

const (
	ComponentSyncer        = "syncer"
	ComponentPipeline      = "pipeline"
	ComponentNodeClient    = "node-client"
	ComponentReorgDetector = "reorg-detector"
	ComponentStore         = "store"
	ComponentArchive       = "archive"
	ComponentProtocols     = "protocols"
	ComponentMaintenance   = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentSyncer:        {},
	ComponentPipeline:      {},
	ComponentNodeClient:    {},
	ComponentReorgDetector: {},
	ComponentStore:         {},
	ComponentArchive:       {},
	ComponentProtocols:     {},
	ComponentMaintenance:   {},
}
