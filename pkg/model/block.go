package model

import "time"

// Operations is a bitset of operation kinds an account or block participates in.
type Operations int64

const (
	OperationsNone        Operations = 0
	OperationsReveals     Operations = 1 << 0
	OperationsRevelations Operations = 1 << 1
	OperationsBlocks      Operations = 1 << 2
)

func (o Operations) Has(flag Operations) bool {
	return o&flag == flag
}

// BlockEvents is a bitset of lifecycle events carried by a block.
type BlockEvents int64

const (
	BlockEventsNone     BlockEvents = 0
	BlockEventsCycleEnd BlockEvents = 1 << 0
)

func (e BlockEvents) Has(flag BlockEvents) bool {
	return e&flag == flag
}

// Block is an ingested block. Level is the primary key.
type Block struct {
	Level      int64       `meddler:"level,pk" json:"level"`
	Hash       string      `meddler:"hash" json:"hash"`
	Timestamp  time.Time   `meddler:"timestamp,utctime" json:"timestamp"`
	ProtoCode  int         `meddler:"proto_code" json:"proto_code"`
	Protocol   string      `meddler:"protocol" json:"protocol"`
	BakerID    *int64      `meddler:"baker_id" json:"baker_id,omitempty"`
	Operations Operations  `meddler:"operations" json:"operations"`
	Events     BlockEvents `meddler:"events" json:"events"`
}

func (b *Block) Clone() *Block {
	c := *b
	if b.BakerID != nil {
		id := *b.BakerID
		c.BakerID = &id
	}
	return &c
}
