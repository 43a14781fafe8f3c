package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"sccert.dev/node/consensus"
	"sccert.dev/node/sidechain"
)

var (
	bucketCoins      = []byte("coins_by_hash")
	bucketBlocks     = []byte("blocks_by_hash")
	bucketUndo       = []byte("undo_by_block_hash")
	bucketSidechains = []byte("sidechains_by_id")
	bucketMeta       = []byte("meta")

	keyBestBlock = []byte("best_block")
	keyTipHeight = []byte("tip_height")
)

// DB is the bbolt-backed chain store: coins keyed by the hash of the entry
// that created them, raw blocks, block undo records and the sidechain
// registry.
type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
}

func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, errors.New("datadir required")
	}
	if network == "" {
		return nil, errors.New("network required")
	}

	chainDir := ChainDir(datadir, network)
	if err := ensureDir(filepath.Join(chainDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open bbolt")
	}

	d := &DB{chainDir: chainDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCoins, bucketBlocks, bucketUndo, bucketSidechains, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "create bucket %s", string(b))
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(chainDir)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		_ = bdb.Close()
		return nil, errors.Wrap(err, "read manifest")
	case m.SchemaVersion > SchemaVersionV1:
		_ = bdb.Close()
		return nil, errors.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	case m.Network != network:
		_ = bdb.Close()
		return nil, errors.Errorf("manifest network %q does not match %q", m.Network, network)
	default:
		d.manifest = m
	}
	if err := d.reconcileManifest(network); err != nil {
		_ = bdb.Close()
		return nil, errors.Wrap(err, "reconcile manifest")
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return errors.New("db: nil")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// GetCoins implements consensus.CoinsView.
func (d *DB) GetCoins(hash consensus.Hash) (*consensus.Coins, bool, error) {
	var out *consensus.Coins
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCoins).Get(hash[:])
		if v == nil {
			return nil
		}
		c, err := decodeCoins(v)
		if err != nil {
			return errors.Wrapf(err, "coins %s", hash)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// BatchWrite implements consensus.CoinsBatchWriter. Pruned entries are
// deleted. The best block is written in the same transaction.
func (d *DB) BatchWrite(entries map[consensus.Hash]*consensus.Coins, bestBlock consensus.Hash) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := putCoins(tx, entries); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyBestBlock, bestBlock[:])
	})
}

func putCoins(tx *bolt.Tx, entries map[consensus.Hash]*consensus.Coins) error {
	b := tx.Bucket(bucketCoins)
	for hash, c := range entries {
		if c.IsPruned() {
			if err := b.Delete(hash[:]); err != nil {
				return errors.Wrapf(err, "delete coins %s", hash)
			}
			continue
		}
		v, err := encodeCoins(c)
		if err != nil {
			return err
		}
		if err := b.Put(hash[:], v); err != nil {
			return errors.Wrapf(err, "put coins %s", hash)
		}
	}
	return nil
}

// BlockCommit is everything one connect or disconnect changes in the store.
type BlockCommit struct {
	Coins            map[consensus.Hash]*consensus.Coins
	Sidechains       map[consensus.Hash]*sidechain.Info
	ErasedSidechains []consensus.Hash

	// Block and Undo are stored when a block is connected.
	Block *consensus.Block
	Undo  *consensus.BlockUndo

	// DropUndo names the block whose undo record goes away on disconnect.
	DropUndo *consensus.Hash

	Tip       consensus.Hash
	TipHeight int
}

// CommitBlock applies c in a single bbolt transaction. The manifest is
// refreshed by the caller afterwards and is not authoritative.
func (d *DB) CommitBlock(c *BlockCommit) error {
	if c == nil {
		return errors.New("commit: nil")
	}
	if c.TipHeight < -1 {
		return errors.Errorf("commit: tip height %d", c.TipHeight)
	}
	err := d.db.Update(func(tx *bolt.Tx) error {
		if err := putCoins(tx, c.Coins); err != nil {
			return err
		}
		if err := putSidechains(tx, c.Sidechains, c.ErasedSidechains); err != nil {
			return err
		}
		if c.Block != nil {
			h := c.Block.Hash()
			if err := tx.Bucket(bucketBlocks).Put(h[:], c.Block.Bytes()); err != nil {
				return errors.Wrapf(err, "put block %s", h)
			}
			if c.Undo != nil {
				val, err := encodeBlockUndo(c.Undo)
				if err != nil {
					return err
				}
				if err := tx.Bucket(bucketUndo).Put(h[:], val); err != nil {
					return errors.Wrapf(err, "put undo %s", h)
				}
			}
		}
		if c.DropUndo != nil {
			if err := tx.Bucket(bucketUndo).Delete(c.DropUndo[:]); err != nil {
				return errors.Wrapf(err, "delete undo %s", *c.DropUndo)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyBestBlock, c.Tip[:]); err != nil {
			return errors.Wrap(err, "put best block")
		}
		return errors.Wrap(meta.Put(keyTipHeight, consensus.AppendI64LE(nil, int64(c.TipHeight))), "put tip height")
	})
	if err != nil {
		return errors.Wrap(err, "commit block")
	}
	return nil
}

// Tip returns the connected tip recorded by the last CommitBlock. ok is
// false when no block is connected.
func (d *DB) Tip() (hash consensus.Hash, height int, ok bool, err error) {
	height = -1
	err = d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		v := meta.Get(keyTipHeight)
		if v == nil {
			return nil
		}
		r := consensus.NewReader(v)
		h, err := r.ReadI64LE()
		if err != nil || r.Done() != nil || h < -1 {
			return errors.Errorf("tip height: bad value %x", v)
		}
		b := meta.Get(keyBestBlock)
		if len(b) != 32 {
			return errors.Errorf("best block: expected 32 bytes, got %d", len(b))
		}
		height = int(h)
		copy(hash[:], b)
		return nil
	})
	if err != nil {
		return consensus.Hash{}, -1, false, err
	}
	return hash, height, height >= 0, nil
}

// reconcileManifest rewrites MANIFEST.json when it disagrees with the tip in
// bbolt, which happens after a crash between the commit and the rename.
func (d *DB) reconcileManifest(network string) error {
	tip, height, ok, err := d.Tip()
	if err != nil {
		return err
	}
	want := Manifest{SchemaVersion: SchemaVersionV1, Network: network, TipHeight: -1}
	if ok {
		want.TipHashHex = tip.String()
		want.TipHeight = height
	}
	if d.manifest == nil && !ok {
		return nil
	}
	if d.manifest != nil && *d.manifest == want {
		return nil
	}
	return d.SetManifest(&want)
}

func (d *DB) CoinsCount() (int, error) {
	n := 0
	err := d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCoins).Stats().KeyN
		return nil
	})
	return n, err
}

func (d *DB) GetBlock(hash consensus.Hash) (*consensus.Block, bool, error) {
	var raw []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketBlocks).Get(hash[:]); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}
	blk, err := consensus.ParseBlock(raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "block %s", hash)
	}
	return blk, true, nil
}

func (d *DB) GetUndo(blockHash consensus.Hash) (*consensus.BlockUndo, bool, error) {
	var out *consensus.BlockUndo
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(blockHash[:])
		if v == nil {
			return nil
		}
		u, err := decodeBlockUndo(v)
		if err != nil {
			return errors.Wrapf(err, "undo %s", blockHash)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

var _ consensus.CoinsBackend = (*DB)(nil)
