package model

// AccountType distinguishes plain accounts from bakers.
type AccountType int

const (
	AccountTypeUser AccountType = iota
	AccountTypeDelegate
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeUser:
		return "user"
	case AccountTypeDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// Account is a ledger account. Delegate-only fields stay zero for users.
//
// DelegateID is a weak reference: the delegate is resolved through the
// account cache by id, never held as a pointer.
type Account struct {
	ID         int64       `meddler:"id,pk" json:"id"`
	Address    string      `meddler:"address" json:"address"`
	Type       AccountType `meddler:"type" json:"type"`
	FirstLevel int64       `meddler:"first_level" json:"first_level"`
	Balance    int64       `meddler:"balance" json:"balance"`
	Counter    int64       `meddler:"counter" json:"counter"`
	DelegateID *int64      `meddler:"delegate_id" json:"delegate_id,omitempty"`
	Operations Operations  `meddler:"operations" json:"operations"`
	PublicKey  string      `meddler:"public_key,zeroisnull" json:"public_key,omitempty"`

	RevealsCount     int64 `meddler:"reveals_count" json:"reveals_count"`
	BlocksCount      int64 `meddler:"blocks_count" json:"blocks_count"`
	RevelationsCount int64 `meddler:"revelations_count" json:"revelations_count"`

	StakingBalance int64 `meddler:"staking_balance" json:"staking_balance"`
	FrozenDeposits int64 `meddler:"frozen_deposits" json:"frozen_deposits"`
	FrozenRewards  int64 `meddler:"frozen_rewards" json:"frozen_rewards"`
	FrozenFees     int64 `meddler:"frozen_fees" json:"frozen_fees"`
}

func (a *Account) IsDelegate() bool {
	return a.Type == AccountTypeDelegate
}

// Revealed reports whether a public key is bound to the account.
func (a *Account) Revealed() bool {
	return a.PublicKey != ""
}

// Clone returns a detached copy, used to snapshot state before a pass mutates it.
func (a *Account) Clone() *Account {
	c := *a
	if a.DelegateID != nil {
		id := *a.DelegateID
		c.DelegateID = &id
	}
	return &c
}

// HasBakingState reports whether any delegate-only field is non-zero.
func (a *Account) HasBakingState() bool {
	return a.BlocksCount != 0 || a.RevelationsCount != 0 ||
		a.StakingBalance != 0 || a.FrozenDeposits != 0 || a.FrozenRewards != 0 || a.FrozenFees != 0
}
