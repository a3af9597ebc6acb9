package create2

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalt(t *testing.T) {
	t.Parallel()

	literal := "0x000000000000000000000000000000000000000000000000000000000000abcd"

	tests := []struct {
		name    string
		give    string
		want    common.Hash
		wantErr string
	}{
		{
			name: "empty is zero salt",
			give: "",
			want: common.Hash{},
		},
		{
			name: "hex literal",
			give: literal,
			want: common.HexToHash(literal),
		},
		{
			name: "plain string hashed",
			give: "thirdweb",
			want: crypto.Keccak256Hash([]byte("thirdweb")),
		},
		{
			name:    "short hex",
			give:    "0xabcd",
			wantErr: "must be 32 bytes",
		},
		{
			name:    "invalid hex",
			give:    "0xzz",
			wantErr: "failed to decode hex salt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Salt(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredictAddress(t *testing.T) {
	t.Parallel()

	// EIP-1014 example 0.
	got := PredictAddress(common.Address{}, common.Hash{}, []byte{0x00})
	assert.Equal(t, common.HexToAddress("0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38"), got)

	initCode := common.FromHex("0x6080604052")
	a := PredictAddress(ArachnidFactory, common.Hash{}, initCode)
	b := PredictAddress(ArachnidFactory, common.Hash{}, initCode)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, PredictAddress(ArachnidFactory, common.HexToHash("0x01"), initCode))
	assert.NotEqual(t, a, PredictAddress(common.HexToAddress("0x01"), common.Hash{}, initCode))
}

func TestFactoryCalldata(t *testing.T) {
	t.Parallel()

	salt := common.HexToHash("0xff")
	data := FactoryCalldata(salt, []byte{0xde, 0xad})

	require.Len(t, data, 34)
	assert.Equal(t, salt.Bytes(), data[:32])
	assert.Equal(t, []byte{0xde, 0xad}, data[32:])
}

func TestFactoryDeploymentTx(t *testing.T) {
	t.Parallel()

	tx, err := FactoryDeploymentTx()
	require.NoError(t, err)

	assert.Nil(t, tx.To())
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, uint64(100_000), tx.Gas())
	assert.Equal(t, big.NewInt(100_000_000_000), tx.GasPrice())
	assert.False(t, tx.Protected())
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), BootstrapCost(tx))
	assert.Equal(t, FactoryRuntimeCode, tx.Data()[14:])

	deployer, err := FactoryDeployer(tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x3fab184622dc19b6109349b94811493bf2a45362"), deployer)
	assert.Equal(t, ArachnidFactory, crypto.CreateAddress(deployer, 0))
}

func TestIsFactoryCode(t *testing.T) {
	t.Parallel()

	assert.Len(t, FactoryRuntimeCode, 69)
	assert.True(t, IsFactoryCode(FactoryRuntimeCode))
	assert.False(t, IsFactoryCode([]byte{0x60, 0x00}))
	assert.False(t, IsFactoryCode(nil))
}
