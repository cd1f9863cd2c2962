// Package abiloader loads contract ABIs, embedded at build time or read from disk.
package abiloader

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names with an embedded ABI.
const (
	IcoPhaseManagement       = "IcoPhaseManagement"
	SmartInvestmentFundToken = "SmartInvestmentFundToken"
)

// ErrABILoad is returned when a contract ABI cannot be read or parsed.
var ErrABILoad = errors.New("error reading contract ABI")

//go:embed abis/*.abi
var embedded embed.FS

// Load returns the ABI for contractName. When overridePath is set the ABI is
// read from that file instead of the embedded copy.
func Load(contractName, overridePath string) (abi.ABI, error) {
	var (
		data []byte
		err  error
	)
	if overridePath != "" {
		data, err = os.ReadFile(overridePath)
	} else {
		data, err = embedded.ReadFile("abis/" + contractName + ".abi")
	}
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w %s: %v", ErrABILoad, contractName, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return abi.ABI{}, fmt.Errorf("%w %s: empty definition", ErrABILoad, contractName)
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w %s: %v", ErrABILoad, contractName, err)
	}
	return parsed, nil
}

// MustHaveMethods checks that every name is a method of parsed.
func MustHaveMethods(parsed abi.ABI, contractName string, names ...string) error {
	for _, name := range names {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("%w %s: method %s not found", ErrABILoad, contractName, name)
		}
	}
	return nil
}
