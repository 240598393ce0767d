package config

import "math/big"

// maxTarget returns 2^256 - 1 as a *big.Int.
func maxTarget() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}
