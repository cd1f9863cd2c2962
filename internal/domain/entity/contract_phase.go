package entity

// ContractPhase is the lifecycle phase reported by the ICO contract.
type ContractPhase int

const (
	// ContractPhaseUnknown means the deployed contracts have not been verified.
	ContractPhaseUnknown ContractPhase = iota
	// ContractPhaseIco means tokens are being sold.
	ContractPhaseIco
	// ContractPhaseTrading means the ICO has closed.
	ContractPhaseTrading
)

func (p ContractPhase) String() string {
	switch p {
	case ContractPhaseIco:
		return "ico"
	case ContractPhaseTrading:
		return "trading"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p ContractPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
