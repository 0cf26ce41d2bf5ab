package scev

import "github.com/minio/highwayhash"

var key = []byte("0123456789ABCDEF0123456789ABCDEF")

// Key returns the structural identity of an expression: a 64-bit keyed hash
// of its canonical form. Two expressions with equal keys denote the same
// parameter.
func Key(e Expr) uint64 {
	hash, err := highwayhash.New64(key)
	if err != nil {
		panic("scev: " + err.Error())
	}
	_, _ = hash.Write([]byte(e.String()))
	return hash.Sum64()
}
