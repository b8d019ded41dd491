package model

import "time"

// AppState is the single-row ingestion head plus the id generators.
type AppState struct {
	ID               int64     `meddler:"id,pk" json:"-"`
	Level            int64     `meddler:"level" json:"level"`
	Hash             string    `meddler:"hash" json:"hash"`
	Protocol         string    `meddler:"protocol" json:"protocol"`
	Timestamp        time.Time `meddler:"timestamp,utctime" json:"timestamp"`
	AccountCounter   int64     `meddler:"account_counter" json:"account_counter"`
	OperationCounter int64     `meddler:"operation_counter" json:"operation_counter"`
}

// Empty reports whether no block has been applied yet.
func (s *AppState) Empty() bool {
	return s.Hash == ""
}
