package store

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"sccert.dev/node/consensus"
	"sccert.dev/node/sidechain"
)

// Layout:
// creation_block 32 | creation_height u32le | creation_tx 32 | balance i64le |
// CompactSize(n) | (maturity_height u32le | amount i64le) * n   ascending by height
func encodeScInfo(info *sidechain.Info) ([]byte, error) {
	out := make([]byte, 0, 32+4+32+8+1+len(info.ImmatureAmounts)*12)
	out = append(out, info.CreationBlockHash[:]...)
	out, err := appendHeight(out, info.CreationHeight)
	if err != nil {
		return nil, errors.Wrap(err, "scinfo")
	}
	out = append(out, info.CreationTxHash[:]...)
	out = consensus.AppendI64LE(out, int64(info.Balance))
	heights := info.MaturityHeights()
	out = consensus.AppendCompactSize(out, uint64(len(heights)))
	for _, h := range heights {
		if out, err = appendHeight(out, h); err != nil {
			return nil, errors.Wrap(err, "scinfo maturity")
		}
		out = consensus.AppendI64LE(out, int64(info.ImmatureAmounts[h]))
	}
	return out, nil
}

func decodeScInfo(b []byte) (*sidechain.Info, error) {
	r := consensus.NewReader(b)
	info := &sidechain.Info{}
	var err error
	if info.CreationBlockHash, err = r.ReadHash(); err != nil {
		return nil, errors.Wrap(err, "scinfo creation block")
	}
	if info.CreationHeight, err = readHeight(r); err != nil {
		return nil, errors.Wrap(err, "scinfo creation height")
	}
	if info.CreationTxHash, err = r.ReadHash(); err != nil {
		return nil, errors.Wrap(err, "scinfo creation tx")
	}
	bal, err := r.ReadI64LE()
	if err != nil {
		return nil, errors.Wrap(err, "scinfo balance")
	}
	info.Balance = consensus.Amount(bal)
	n, err := r.ReadCompactSize("scinfo immature count")
	if err != nil {
		return nil, err
	}
	info.ImmatureAmounts = make(map[int]consensus.Amount, min(n, r.Remaining()/12))
	for i := 0; i < n; i++ {
		h, err := readHeight(r)
		if err != nil {
			return nil, errors.Wrap(err, "scinfo maturity height")
		}
		a, err := r.ReadI64LE()
		if err != nil {
			return nil, errors.Wrap(err, "scinfo maturity amount")
		}
		info.ImmatureAmounts[h] = consensus.Amount(a)
	}
	if err := r.Done(); err != nil {
		return nil, errors.Wrap(err, "scinfo")
	}
	return info, nil
}

// LoadSidechains implements sidechain.Backend.
func (d *DB) LoadSidechains() (map[consensus.Hash]*sidechain.Info, error) {
	out := make(map[consensus.Hash]*sidechain.Info)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSidechains).ForEach(func(k, v []byte) error {
			if len(k) != 32 {
				return errors.Errorf("sidechain key: expected 32 bytes, got %d", len(k))
			}
			info, err := decodeScInfo(v)
			if err != nil {
				return err
			}
			var id consensus.Hash
			copy(id[:], k)
			out[id] = info
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "load sidechains")
	}
	return out, nil
}

// WriteSidechains implements sidechain.Backend in a single transaction.
func (d *DB) WriteSidechains(upserts map[consensus.Hash]*sidechain.Info, erased []consensus.Hash) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putSidechains(tx, upserts, erased)
	})
}

func putSidechains(tx *bolt.Tx, upserts map[consensus.Hash]*sidechain.Info, erased []consensus.Hash) error {
	b := tx.Bucket(bucketSidechains)
	for _, id := range erased {
		if err := b.Delete(id[:]); err != nil {
			return errors.Wrapf(err, "delete sidechain %s", id)
		}
	}
	for id, info := range upserts {
		v, err := encodeScInfo(info)
		if err != nil {
			return err
		}
		if err := b.Put(id[:], v); err != nil {
			return errors.Wrapf(err, "put sidechain %s", id)
		}
	}
	return nil
}

var _ sidechain.Backend = (*DB)(nil)
