package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
)

// Validation passes of a block's operation list.
const (
	PassEndorsements = iota
	PassVotes
	PassAnonymous
	PassManager

	ValidationPasses
)

// Operation content kinds.
const (
	KindEndorsement               = "endorsement"
	KindSeedNonceRevelation       = "seed_nonce_revelation"
	KindDoubleEndorsementEvidence = "double_endorsement_evidence"
	KindDoubleBakingEvidence      = "double_baking_evidence"
	KindActivateAccount           = "activate_account"
	KindProposals                 = "proposals"
	KindBallot                    = "ballot"
	KindReveal                    = "reveal"
	KindTransaction               = "transaction"
	KindOrigination               = "origination"
	KindDelegation                = "delegation"
)

// Balance update kinds and freezer categories.
const (
	BalanceKindContract = "contract"
	BalanceKindFreezer  = "freezer"

	FreezerDeposits = "deposits"
	FreezerRewards  = "rewards"
	FreezerFees     = "fees"
)

// Int64 decodes both JSON numbers and the quoted decimal strings the node uses for mutez and counters.
type Int64 int64

func (i *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}

	*i = Int64(v)
	return nil
}

func (i Int64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(i), 10))), nil
}

// BlockHeader is the shell header of a block plus its hash.
type BlockHeader struct {
	Hash        string    `json:"hash"`
	Level       int64     `json:"level"`
	Proto       int       `json:"proto"`
	Predecessor string    `json:"predecessor"`
	Timestamp   time.Time `json:"timestamp"`
}

// LevelInfo locates a block inside its cycle.
type LevelInfo struct {
	Level         int64 `json:"level"`
	Cycle         int64 `json:"cycle"`
	CyclePosition int64 `json:"cycle_position"`
}

// BlockMetadata is the protocol-level receipt of a block.
type BlockMetadata struct {
	Protocol       string          `json:"protocol"`
	NextProtocol   string          `json:"next_protocol"`
	Baker          string          `json:"baker"`
	Level          *LevelInfo      `json:"level,omitempty"`
	BalanceUpdates []BalanceUpdate `json:"balance_updates"`
}

// Block is a fully decoded block as served by /chains/<chain>/blocks/<id>.
type Block struct {
	Protocol   string         `json:"protocol"`
	ChainID    string         `json:"chain_id"`
	Hash       string         `json:"hash"`
	Header     BlockHeader    `json:"header"`
	Metadata   *BlockMetadata `json:"metadata"`
	Operations [][]Operation  `json:"operations"`
}

// Level returns the block level from the header.
func (b *Block) Level() int64 {
	return b.Header.Level
}

// Validate reports an incomplete block as retryable: the node sometimes serves
// a block before its metadata or operation receipts are available.
func (b *Block) Validate() error {
	if b.Hash == "" || b.Protocol == "" {
		return common.Retryablef("block at level %d has no hash or protocol", b.Header.Level)
	}
	if b.Metadata == nil {
		return common.Retryablef("block %s has no metadata", b.Hash)
	}
	if b.Header.Level > 1 && len(b.Operations) != ValidationPasses {
		return common.Retryablef("block %s has %d validation passes, expected %d",
			b.Hash, len(b.Operations), ValidationPasses)
	}

	for _, pass := range b.Operations {
		for _, op := range pass {
			for _, content := range op.Contents {
				if content.Metadata == nil {
					return common.Retryablef("operation %s in block %s has no receipt", op.Hash, b.Hash)
				}
			}
		}
	}

	return nil
}

// PassLen returns the number of operations in a validation pass.
func (b *Block) PassLen(pass int) int {
	if pass < 0 || pass >= len(b.Operations) {
		return 0
	}
	return len(b.Operations[pass])
}

// HeaderWithHash returns a copy of the header with the block hash filled in.
func (b *Block) HeaderWithHash() *BlockHeader {
	h := b.Header
	h.Hash = b.Hash
	return &h
}

// BalanceUpdate is one entry of a balance update list.
// Before protocol 5 freezer entries carried the cycle in a field named "level".
type BalanceUpdate struct {
	Kind        string `json:"kind"`
	Contract    string `json:"contract,omitempty"`
	Category    string `json:"category,omitempty"`
	Delegate    string `json:"delegate,omitempty"`
	Cycle       *Int64 `json:"cycle,omitempty"`
	LegacyCycle *Int64 `json:"level,omitempty"`
	Change      Int64  `json:"change"`
}

func (u *BalanceUpdate) IsFreezer() bool {
	return u.Kind == BalanceKindFreezer
}

// FreezerCycle returns the cycle a freezer entry concerns.
func (u *BalanceUpdate) FreezerCycle() (int64, bool) {
	switch {
	case u.Cycle != nil:
		return int64(*u.Cycle), true
	case u.LegacyCycle != nil:
		return int64(*u.LegacyCycle), true
	default:
		return 0, false
	}
}

// Operation is a signed operation holding one or more contents.
type Operation struct {
	Protocol string    `json:"protocol"`
	ChainID  string    `json:"chain_id"`
	Hash     string    `json:"hash"`
	Branch   string    `json:"branch"`
	Contents []Content `json:"contents"`
}

// Content is one operation content. Fields not used by a kind stay zero.
type Content struct {
	Kind string `json:"kind"`

	// manager operations
	Source       string `json:"source,omitempty"`
	Fee          Int64  `json:"fee,omitempty"`
	Counter      Int64  `json:"counter,omitempty"`
	GasLimit     Int64  `json:"gas_limit,omitempty"`
	StorageLimit Int64  `json:"storage_limit,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`

	// seed_nonce_revelation
	Level int64  `json:"level,omitempty"`
	Nonce string `json:"nonce,omitempty"`

	Metadata *ContentMetadata `json:"metadata,omitempty"`
}

// ContentMetadata is the receipt of one content.
type ContentMetadata struct {
	BalanceUpdates  []BalanceUpdate  `json:"balance_updates,omitempty"`
	OperationResult *OperationResult `json:"operation_result,omitempty"`
}

// OperationResult is the application result of a manager operation.
type OperationResult struct {
	Status      string `json:"status"`
	ConsumedGas Int64  `json:"consumed_gas,omitempty"`
}

// DecodeBlock decodes a block served by the node.
func DecodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
