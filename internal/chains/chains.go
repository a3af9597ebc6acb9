package chains

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/compose-network/factory-deployer/internal/logger"
)

type (
	// Chain describes a deployment target. Name and Selector come from chain-selectors;
	// Selector is 0 for chains it does not know about.
	Chain struct {
		ID       uint64
		Name     string
		Selector uint64
		RPCURL   string
	}
)

func (c Chain) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.ID)
}

// Lookup returns the descriptor for an EVM chain id.
func Lookup(id uint64) Chain {
	chain := Chain{
		ID:   id,
		Name: fmt.Sprintf("chain-%d", id),
	}

	details, err := chainsel.GetChainDetailsByChainIDAndFamily(strconv.FormatUint(id, 10), chainsel.FamilyEVM)
	if err != nil {
		return chain
	}

	chain.Selector = details.ChainSelector
	if details.ChainName != "" {
		chain.Name = details.ChainName
	}

	return chain
}

// Resolve flattens the target sets, in order, followed by the extra chain ids.
// Duplicate ids keep their first position. Overrides map a decimal chain id to an RPC URL.
func Resolve(sets map[string][]uint64, targets []string, extra []uint64, overrides map[string]string) ([]Chain, error) {
	log := logger.Named("chains")

	var ids []uint64
	for _, target := range targets {
		set, ok := sets[target]
		if !ok {
			// viper lowercases map keys, so "Mainnets" is stored as "mainnets".
			set, ok = sets[strings.ToLower(target)]
		}
		if !ok {
			return nil, fmt.Errorf("unknown chain set '%s'", target)
		}
		ids = append(ids, set...)
	}
	ids = append(ids, extra...)

	seen := make(map[uint64]struct{}, len(ids))
	resolved := make([]Chain, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, errors.New("chain id 0 is not valid")
		}
		if _, dup := seen[id]; dup {
			log.With("chain_id", id).Warn("duplicate chain id ignored")
			continue
		}
		seen[id] = struct{}{}

		chain := Lookup(id)
		if url, ok := overrides[strconv.FormatUint(id, 10)]; ok {
			chain.RPCURL = url
		}
		resolved = append(resolved, chain)
	}

	if len(resolved) == 0 {
		return nil, errors.New("no chains to deploy to")
	}

	for key := range overrides {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rpc override key '%s' is not a chain id: %w", key, err)
		}
		if _, ok := seen[id]; !ok {
			log.With("chain_id", id).Debug("rpc override for chain outside targets")
		}
	}

	return resolved, nil
}
