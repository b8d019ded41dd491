package model

import (
	"fmt"
	"time"
)

// OperationStatus is the result status of a manager operation.
type OperationStatus int

const (
	OperationStatusApplied OperationStatus = iota + 1
	OperationStatusBacktracked
	OperationStatusFailed
)

var operationStatusNames = map[OperationStatus]string{
	OperationStatusApplied:     "applied",
	OperationStatusBacktracked: "backtracked",
	OperationStatusFailed:      "failed",
}

func (s OperationStatus) String() string {
	if name, ok := operationStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseOperationStatus maps a node status string onto the closed status set.
func ParseOperationStatus(s string) (OperationStatus, bool) {
	for status, name := range operationStatusNames {
		if name == s {
			return status, true
		}
	}
	return 0, false
}

// RevealOperation binds a public key to its sender.
type RevealOperation struct {
	ID           int64           `meddler:"id,pk" json:"id"`
	OpHash       string          `meddler:"op_hash" json:"op_hash"`
	Level        int64           `meddler:"level" json:"level"`
	Timestamp    time.Time       `meddler:"timestamp,utctime" json:"timestamp"`
	SenderID     int64           `meddler:"sender_id" json:"sender_id"`
	PublicKey    string          `meddler:"public_key" json:"public_key"`
	BakerFee     int64           `meddler:"baker_fee" json:"baker_fee"`
	Counter      int64           `meddler:"counter" json:"counter"`
	GasLimit     int64           `meddler:"gas_limit" json:"gas_limit"`
	StorageLimit int64           `meddler:"storage_limit" json:"storage_limit"`
	GasUsed      int64           `meddler:"gas_used" json:"gas_used"`
	Status       OperationStatus `meddler:"status,opstatus" json:"status"`
}

// NonceRevelationOperation reveals the seed nonce committed at RevealedLevel.
type NonceRevelationOperation struct {
	ID            int64     `meddler:"id,pk" json:"id"`
	OpHash        string    `meddler:"op_hash" json:"op_hash"`
	Level         int64     `meddler:"level" json:"level"`
	Timestamp     time.Time `meddler:"timestamp,utctime" json:"timestamp"`
	BakerID       int64     `meddler:"baker_id" json:"baker_id"`
	RevealedLevel int64     `meddler:"revealed_level" json:"revealed_level"`
	Reward        int64     `meddler:"reward" json:"reward"`
}
