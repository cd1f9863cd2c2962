package entity

import (
	"math/big"
	"sync"
	"time"

	"sift_client/internal/pkg/notify"
)

const statusSource = "status"

// ChainStatus is the process-wide view of network and contract state.
// It is written by the synchronizer only; everything else reads it.
type ChainStatus struct {
	mu                   sync.RWMutex
	phase                ContractPhase
	blockNumber          uint64
	isSyncing            bool
	lastChecksSuccessful bool
	totalSupply          *big.Int
	isIcoAbandoned       bool
	icoStartDate         time.Time
	icoEndDate           time.Time
	defaultGas           GasEstimate
	contractErr          error
	notifier             *notify.Notifier
}

// ChainStatusSnapshot is a read-only copy of ChainStatus.
type ChainStatusSnapshot struct {
	Phase                ContractPhase `json:"phase"`
	BlockNumber          uint64        `json:"blockNumber"`
	IsSyncing            bool          `json:"isSyncing"`
	LastChecksSuccessful bool          `json:"lastChecksSuccessful"`
	TotalSupply          *big.Int      `json:"totalSupply"`
	IsIcoAbandoned       bool          `json:"isIcoAbandoned"`
	IcoStartDate         time.Time     `json:"icoStartDate"`
	IcoEndDate           time.Time     `json:"icoEndDate"`
	DefaultGas           *GasEstimate  `json:"defaultGas,omitempty"`
	ContractError        string        `json:"contractError,omitempty"`
}

// NewChainStatus creates a status in the Unknown phase.
func NewChainStatus(notifier *notify.Notifier) *ChainStatus {
	return &ChainStatus{totalSupply: new(big.Int), notifier: notifier}
}

// Phase returns the contract phase.
func (s *ChainStatus) Phase() ContractPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// LastChecksSuccessful reports whether the latest poll cycle completed.
func (s *ChainStatus) LastChecksSuccessful() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChecksSuccessful
}

// TotalSupply returns a copy of the token total supply.
func (s *ChainStatus) TotalSupply() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.totalSupply)
}

// DefaultGas returns the gas estimate refreshed during the last contract check.
func (s *ChainStatus) DefaultGas() GasEstimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultGas
}

// ContractError returns the last contract verification error, if any.
func (s *ChainStatus) ContractError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractErr
}

// update applies fn under the write lock and notifies property when fn reports a change.
func (s *ChainStatus) update(property string, fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()
	if changed {
		s.notifier.Notify(statusSource, "", property)
	}
	return changed
}

// SetPhase sets the contract phase.
func (s *ChainStatus) SetPhase(v ContractPhase) bool {
	return s.update("ContractPhase", func() bool {
		if s.phase == v {
			return false
		}
		s.phase = v
		return true
	})
}

// SetBlockNumber sets the current block number.
func (s *ChainStatus) SetBlockNumber(v uint64) bool {
	return s.update("BlockNumber", func() bool {
		if s.blockNumber == v {
			return false
		}
		s.blockNumber = v
		return true
	})
}

// SetSyncing sets the node syncing flag.
func (s *ChainStatus) SetSyncing(v bool) bool {
	return s.update("IsSyncing", func() bool {
		if s.isSyncing == v {
			return false
		}
		s.isSyncing = v
		return true
	})
}

// SetLastChecksSuccessful records the outcome of a poll cycle.
func (s *ChainStatus) SetLastChecksSuccessful(v bool) bool {
	return s.update("LastChecksSuccessful", func() bool {
		if s.lastChecksSuccessful == v {
			return false
		}
		s.lastChecksSuccessful = v
		return true
	})
}

// SetTotalSupply sets the token total supply.
func (s *ChainStatus) SetTotalSupply(v *big.Int) bool {
	return s.update("TotalSupply", func() bool {
		if s.totalSupply.Cmp(v) == 0 {
			return false
		}
		s.totalSupply = new(big.Int).Set(v)
		return true
	})
}

// SetIcoAbandoned sets the ICO abandonment flag.
func (s *ChainStatus) SetIcoAbandoned(v bool) bool {
	return s.update("IsIcoAbandoned", func() bool {
		if s.isIcoAbandoned == v {
			return false
		}
		s.isIcoAbandoned = v
		return true
	})
}

// SetIcoStartDate sets the ICO start time.
func (s *ChainStatus) SetIcoStartDate(v time.Time) bool {
	return s.update("IcoStartDate", func() bool {
		if s.icoStartDate.Equal(v) {
			return false
		}
		s.icoStartDate = v
		return true
	})
}

// SetIcoEndDate sets the ICO end time.
func (s *ChainStatus) SetIcoEndDate(v time.Time) bool {
	return s.update("IcoEndDate", func() bool {
		if s.icoEndDate.Equal(v) {
			return false
		}
		s.icoEndDate = v
		return true
	})
}

// SetDefaultGas sets the reference gas estimate.
func (s *ChainStatus) SetDefaultGas(v GasEstimate) bool {
	return s.update("DefaultGasInfo", func() bool {
		if sameGasEstimate(s.defaultGas, v) {
			return false
		}
		s.defaultGas = v
		return true
	})
}

// SetContractError records (or clears, with nil) a contract verification error.
func (s *ChainStatus) SetContractError(err error) bool {
	return s.update("ContractError", func() bool {
		if errorText(s.contractErr) == errorText(err) {
			return false
		}
		s.contractErr = err
		return true
	})
}

// Snapshot returns a consistent copy of the status.
func (s *ChainStatus) Snapshot() ChainStatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ChainStatusSnapshot{
		Phase:                s.phase,
		BlockNumber:          s.blockNumber,
		IsSyncing:            s.isSyncing,
		LastChecksSuccessful: s.lastChecksSuccessful,
		TotalSupply:          new(big.Int).Set(s.totalSupply),
		IsIcoAbandoned:       s.isIcoAbandoned,
		IcoStartDate:         s.icoStartDate,
		IcoEndDate:           s.icoEndDate,
		ContractError:        errorText(s.contractErr),
	}
	if !s.defaultGas.IsZero() {
		gas := s.defaultGas
		snap.DefaultGas = &gas
	}
	return snap
}

func sameGasEstimate(a, b GasEstimate) bool {
	return a.Gas == b.Gas && bigEqual(a.GasPrice, b.GasPrice) && bigEqual(a.GasCost, b.GasCost)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
