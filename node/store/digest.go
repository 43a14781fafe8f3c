package store

import (
	bolt "go.etcd.io/bbolt"

	"sccert.dev/node/consensus"
	"sccert.dev/node/crypto"
)

// CoinsDigest is SHA3-256 over every coins record in key order, each framed
// as key | CompactSize(len(value)) | value. Two nodes with the same coin
// set produce the same digest.
func (d *DB) CoinsDigest() ([32]byte, error) {
	var buf []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCoins).ForEach(func(k, v []byte) error {
			buf = append(buf, k...)
			buf = consensus.AppendVarBytes(buf, v)
			return nil
		})
	})
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.SHA3_256(buf), nil
}
