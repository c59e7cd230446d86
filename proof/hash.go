package proof

import (
	"crypto/sha256"
	"hash"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
	"github.com/provideplatform/datapool/common"
)

// HashFactory returns the MiMC hash for the given curve, or sha256 if no curve is given
func HashFactory(curve *string) hash.Hash {
	if curve == nil {
		return sha256.New()
	}

	switch {
	case strings.EqualFold(*curve, ecc.BLS12_377.String()):
		return gnarkhash.MIMC_BLS12_377.New()
	case strings.EqualFold(*curve, ecc.BLS12_381.String()):
		return gnarkhash.MIMC_BLS12_381.New()
	case strings.EqualFold(*curve, ecc.BN254.String()):
		return gnarkhash.MIMC_BN254.New()
	case strings.EqualFold(*curve, ecc.BW6_761.String()):
		return gnarkhash.MIMC_BW6_761.New()
	case strings.EqualFold(*curve, ecc.BLS24_315.String()):
		return gnarkhash.MIMC_BLS24_315.New()
	default:
		common.Log.Warningf("failed to resolve hash type string; unknown or unsupported curve: %s; falling back to sha256", *curve)
	}

	return sha256.New()
}
