// Package contract reads the SIFT ICO and token contracts through ABI-encoded eth_call requests.
package contract

import (
	"context"
	"fmt"
	"math/big"

	"sift_client/internal/app/port"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Binding packs calls for one deployed contract and unpacks the results.
type Binding struct {
	name    string
	abi     abi.ABI
	address string
	caller  port.ContractCaller
}

// NewBinding binds parsed to the contract deployed at address.
func NewBinding(name string, parsed abi.ABI, address string, caller port.ContractCaller) *Binding {
	return &Binding{name: name, abi: parsed, address: address, caller: caller}
}

// Address returns the contract address.
func (b *Binding) Address() string {
	return b.address
}

// Call invokes a constant method and returns its unpacked outputs.
func (b *Binding) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", b.name, method, err)
	}
	raw, err := b.caller.CallContract(ctx, b.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s failed: %w", b.name, method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("call %s.%s returned no data (is the contract deployed at %s?)", b.name, method, b.address)
	}
	out, err := b.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s: %w", b.name, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s.%s returned no values", b.name, method)
	}
	return out, nil
}

// CallBigInt calls a method returning a single uint256.
func (b *Binding) CallBigInt(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := b.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s.%s: unexpected result type %T", b.name, method, out[0])
	}
	return v, nil
}

// CallBool calls a method returning a single bool.
func (b *Binding) CallBool(ctx context.Context, method string, args ...any) (bool, error) {
	out, err := b.Call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s.%s: unexpected result type %T", b.name, method, out[0])
	}
	return v, nil
}

// SiftContracts implements port.ContractReader over the ICO and token bindings.
type SiftContracts struct {
	ico   *Binding
	token *Binding
}

var _ port.ContractReader = (*SiftContracts)(nil)

// NewSiftContracts creates a reader for the two contracts.
func NewSiftContracts(ico, token *Binding) *SiftContracts {
	return &SiftContracts{ico: ico, token: token}
}

// IcoContractVersion returns the version constant of the ICO contract.
func (s *SiftContracts) IcoContractVersion(ctx context.Context) (*big.Int, error) {
	return s.ico.CallBigInt(ctx, "contractVersion")
}

// IcoPhase reports whether the ICO is still selling tokens.
func (s *SiftContracts) IcoPhase(ctx context.Context) (bool, error) {
	return s.ico.CallBool(ctx, "icoPhase")
}

// IcoAbandoned reports whether the ICO was abandoned.
func (s *SiftContracts) IcoAbandoned(ctx context.Context) (bool, error) {
	return s.ico.CallBool(ctx, "icoAbandoned")
}

// IcoStartTime returns the ICO start as Unix seconds.
func (s *SiftContracts) IcoStartTime(ctx context.Context) (uint64, error) {
	return s.unixSeconds(ctx, "icoStartTime")
}

// IcoEndTime returns the ICO end as Unix seconds.
func (s *SiftContracts) IcoEndTime(ctx context.Context) (uint64, error) {
	return s.unixSeconds(ctx, "icoEndTime")
}

// TokenContractVersion returns the version constant of the SIFT token contract.
func (s *SiftContracts) TokenContractVersion(ctx context.Context) (*big.Int, error) {
	return s.token.CallBigInt(ctx, "contractVersion")
}

// TotalSupply returns the number of SIFT tokens issued.
func (s *SiftContracts) TotalSupply(ctx context.Context) (*big.Int, error) {
	return s.token.CallBigInt(ctx, "totalSupply")
}

// TokenBalance returns the SIFT balance of address.
func (s *SiftContracts) TokenBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	return s.token.CallBigInt(ctx, "balanceOf", common.HexToAddress(address))
}

func (s *SiftContracts) unixSeconds(ctx context.Context, method string) (uint64, error) {
	v, err := s.ico.CallBigInt(ctx, method)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %s", method, v)
	}
	return v.Uint64(), nil
}
