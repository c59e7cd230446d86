package proof

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	uuid "github.com/kthomas/go.uuid"
)

// DeriveHandle returns the uniqueness handle binding an oracle-supplied proof value to the
// given seller, proof name and pool instance; each field is length-prefixed so that no two
// distinct tuples share an encoding
func DeriveHandle(seller, proofName, value string, poolID uuid.UUID) string {
	digest := sha256.New()
	for _, field := range [][]byte{[]byte(seller), []byte(proofName), []byte(value), poolID.Bytes()} {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(field)))
		digest.Write(length[:])
		digest.Write(field)
	}
	return hex.EncodeToString(digest.Sum(nil))
}
