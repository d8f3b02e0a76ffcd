package syncer

import "crypto/sha256"

func digestOf(content []byte) [32]byte {
	return sha256.Sum256(content)
}
