package runner

import (
	"fmt"
	"math/big"
)

var weiPerUnit = new(big.Float).SetInt(big.NewInt(1e18))

// FormatBalance formats a wei amount in whole units of the chain's native token, e.g.
// "0.0150 native (15000000000000000 wei)".
func FormatBalance(wei *big.Int) string {
	if wei == nil {
		return "unknown"
	}

	units := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerUnit)

	return fmt.Sprintf("%.4f native (%s wei)", units, wei.String())
}
