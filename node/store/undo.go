package store

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"sccert.dev/node/consensus"
)

// Layout:
// CompactSize(nTx) | TxUndo * nTx | CompactSize(nCert) | CertUndo * nCert
//
// TxUndo:   CompactSize(nSpent) | SpentCoin * nSpent | prev
// SpentCoin: hash 32 | n u32le | txout | height u32le | version i32le | flags u8
// CertUndo: cert_hash 32 | height u32le | prev
// prev:     0x00 | 0x01 coins
// then:     CompactSize(nSc) | (sc_id 32 | amount i64le) * nSc   ascending by id
func encodeBlockUndo(u *consensus.BlockUndo) ([]byte, error) {
	out := consensus.AppendCompactSize(nil, uint64(len(u.TxUndo)))
	var err error
	for _, tu := range u.TxUndo {
		out = consensus.AppendCompactSize(out, uint64(len(tu.Spent)))
		for _, sp := range tu.Spent {
			out = append(out, sp.Prevout.Hash[:]...)
			out = consensus.AppendU32LE(out, sp.Prevout.N)
			out = consensus.AppendTxOut(out, sp.Out)
			if out, err = appendHeight(out, sp.Height); err != nil {
				return nil, errors.Wrap(err, "undo spent")
			}
			out = consensus.AppendI32LE(out, sp.Version)
			var flags byte
			if sp.IsCoinBase {
				flags |= coinsFlagCoinBase
			}
			if sp.IsFromCert {
				flags |= coinsFlagFromCert
			}
			out = append(out, flags)
		}
		if out, err = appendPrev(out, tu.Prev); err != nil {
			return nil, err
		}
	}
	out = consensus.AppendCompactSize(out, uint64(len(u.CertUndo)))
	for _, cu := range u.CertUndo {
		out = append(out, cu.CertHash[:]...)
		if out, err = appendHeight(out, cu.Height); err != nil {
			return nil, errors.Wrap(err, "undo cert")
		}
		if out, err = appendPrev(out, cu.Prev); err != nil {
			return nil, err
		}
	}
	ids := make([]consensus.Hash, 0, len(u.ScMatured))
	for id := range u.ScMatured {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	out = consensus.AppendCompactSize(out, uint64(len(ids)))
	for _, id := range ids {
		out = append(out, id[:]...)
		out = consensus.AppendI64LE(out, int64(u.ScMatured[id]))
	}
	return out, nil
}

func appendPrev(b []byte, prev *consensus.Coins) ([]byte, error) {
	if prev == nil {
		return append(b, 0x00), nil
	}
	return appendCoins(append(b, 0x01), prev)
}

func readPrev(r *consensus.Reader) (*consensus.Coins, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "undo prev tag")
	}
	switch tag {
	case 0x00:
		return nil, nil
	case 0x01:
		return readCoins(r)
	default:
		return nil, errors.Errorf("undo: bad prev tag 0x%02x", tag)
	}
}

func decodeBlockUndo(b []byte) (*consensus.BlockUndo, error) {
	r := consensus.NewReader(b)
	u := &consensus.BlockUndo{}
	nTx, err := r.ReadCompactSize("undo tx count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nTx; i++ {
		var tu consensus.TxUndo
		nSpent, err := r.ReadCompactSize("undo spent count")
		if err != nil {
			return nil, err
		}
		for j := 0; j < nSpent; j++ {
			var sp consensus.SpentCoin
			if sp.Prevout.Hash, err = r.ReadHash(); err != nil {
				return nil, errors.Wrap(err, "undo prevout")
			}
			if sp.Prevout.N, err = r.ReadU32LE(); err != nil {
				return nil, errors.Wrap(err, "undo prevout")
			}
			if sp.Out, err = consensus.ReadTxOut(r); err != nil {
				return nil, errors.Wrap(err, "undo txout")
			}
			if sp.Height, err = readHeight(r); err != nil {
				return nil, errors.Wrap(err, "undo height")
			}
			if sp.Version, err = r.ReadI32LE(); err != nil {
				return nil, errors.Wrap(err, "undo version")
			}
			flags, err := r.ReadU8()
			if err != nil {
				return nil, errors.Wrap(err, "undo flags")
			}
			sp.IsCoinBase = flags&coinsFlagCoinBase != 0
			sp.IsFromCert = flags&coinsFlagFromCert != 0
			tu.Spent = append(tu.Spent, sp)
		}
		if tu.Prev, err = readPrev(r); err != nil {
			return nil, err
		}
		u.TxUndo = append(u.TxUndo, tu)
	}
	nCert, err := r.ReadCompactSize("undo cert count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nCert; i++ {
		var cu consensus.CertUndo
		if cu.CertHash, err = r.ReadHash(); err != nil {
			return nil, errors.Wrap(err, "undo cert hash")
		}
		if cu.Height, err = readHeight(r); err != nil {
			return nil, errors.Wrap(err, "undo cert height")
		}
		if cu.Prev, err = readPrev(r); err != nil {
			return nil, err
		}
		u.CertUndo = append(u.CertUndo, cu)
	}
	nSc, err := r.ReadCompactSize("undo sidechain count")
	if err != nil {
		return nil, err
	}
	if nSc > 0 {
		u.ScMatured = make(map[consensus.Hash]consensus.Amount, min(nSc, r.Remaining()/40))
	}
	for i := 0; i < nSc; i++ {
		id, err := r.ReadHash()
		if err != nil {
			return nil, errors.Wrap(err, "undo sidechain id")
		}
		amount, err := r.ReadI64LE()
		if err != nil {
			return nil, errors.Wrap(err, "undo sidechain amount")
		}
		u.ScMatured[id] = consensus.Amount(amount)
	}
	if err := r.Done(); err != nil {
		return nil, errors.Wrap(err, "undo")
	}
	return u, nil
}
