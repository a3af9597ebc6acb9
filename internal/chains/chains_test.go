package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	mainnet := Lookup(1)
	assert.Equal(t, uint64(1), mainnet.ID)
	assert.Equal(t, "ethereum-mainnet", mainnet.Name)
	assert.NotZero(t, mainnet.Selector)

	unknown := Lookup(987654321987)
	assert.Equal(t, "chain-987654321987", unknown.Name)
	assert.Zero(t, unknown.Selector)
	assert.Equal(t, "chain-987654321987 (987654321987)", unknown.String())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	sets := map[string][]uint64{
		"mainnets": {1, 10, 252, 8453, 252},
		"testnets": {11155111, 84532},
	}

	tests := []struct {
		name      string
		targets   []string
		extra     []uint64
		overrides map[string]string
		wantIDs   []uint64
		wantURLs  map[uint64]string
		wantErr   string
	}{
		{
			name:    "sets in target order with duplicates dropped",
			targets: []string{"mainnets", "testnets"},
			wantIDs: []uint64{1, 10, 252, 8453, 11155111, 84532},
		},
		{
			name:    "reverse target order",
			targets: []string{"testnets", "mainnets"},
			wantIDs: []uint64{11155111, 84532, 1, 10, 252, 8453},
		},
		{
			name:    "extra chains appended after sets",
			targets: []string{"testnets"},
			extra:   []uint64{84532, 42161},
			wantIDs: []uint64{11155111, 84532, 42161},
		},
		{
			name:      "rpc overrides applied",
			targets:   []string{"testnets"},
			overrides: map[string]string{"84532": "http://localhost:8545"},
			wantIDs:   []uint64{11155111, 84532},
			wantURLs:  map[uint64]string{84532: "http://localhost:8545"},
		},
		{
			name:    "target matches lowercased set name",
			targets: []string{"TestNets"},
			wantIDs: []uint64{11155111, 84532},
		},
		{
			name:    "unknown set",
			targets: []string{"devnets"},
			wantErr: "unknown chain set 'devnets'",
		},
		{
			name:    "zero chain id",
			extra:   []uint64{0},
			wantErr: "chain id 0 is not valid",
		},
		{
			name:    "nothing to deploy",
			wantErr: "no chains to deploy to",
		},
		{
			name:      "bad override key",
			targets:   []string{"testnets"},
			overrides: map[string]string{"base": "http://localhost:8545"},
			wantErr:   "is not a chain id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(sets, tt.targets, tt.extra, tt.overrides)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			ids := make([]uint64, 0, len(got))
			for _, chain := range got {
				ids = append(ids, chain.ID)
				assert.NotEmpty(t, chain.Name)
				assert.Equal(t, tt.wantURLs[chain.ID], chain.RPCURL)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
