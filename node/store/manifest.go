package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"sccert.dev/node/consensus"
)

const SchemaVersionV1 uint32 = 1

// Manifest mirrors the tip recorded in bbolt for operators and tooling.
// Open rewrites it whenever it disagrees with the database.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Network       string `json:"network"`

	TipHashHex string `json:"tip_hash"`
	TipHeight  int    `json:"tip_height"`
}

func (m *Manifest) TipHash() (consensus.Hash, error) {
	if m.TipHashHex == "" {
		return consensus.Hash{}, nil
	}
	return consensus.HashFromString(m.TipHashHex)
}

func manifestPath(chainDir string) string {
	return filepath.Join(chainDir, "MANIFEST.json")
}

func readManifest(chainDir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(chainDir)) // #nosec G304 -- chainDir is derived from operator-controlled datadir.
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "manifest json")
	}
	return &m, nil
}

// writeManifestAtomic commits MANIFEST.json: write temp, fsync, rename,
// fsync dir.
func writeManifestAtomic(chainDir string, m *Manifest) error {
	if m == nil {
		return errors.New("manifest: nil")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "manifest json")
	}
	b = append(b, '\n')

	final := manifestPath(chainDir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- tmp path is derived from operator-controlled datadir.
	if err != nil {
		return errors.Wrap(err, "manifest open tmp")
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	switch {
	case werr != nil:
		return errors.Wrap(werr, "manifest write tmp")
	case serr != nil:
		return errors.Wrap(serr, "manifest fsync tmp")
	case cerr != nil:
		return errors.Wrap(cerr, "manifest close tmp")
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrap(err, "manifest rename")
	}

	d, err := os.Open(chainDir) // #nosec G304 -- chainDir is derived from operator-controlled datadir.
	if err != nil {
		return errors.Wrap(err, "manifest fsync dir open")
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return errors.Wrap(err, "manifest fsync dir")
	}
	return errors.Wrap(d.Close(), "manifest fsync dir close")
}
