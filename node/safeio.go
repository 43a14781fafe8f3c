package node

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MaxConfigFileBytes bounds how much of a config file LoadConfig will read.
const MaxConfigFileBytes = 1 << 20

// readConfigFile reads path through a filesystem rooted at its directory, so
// the base name cannot walk out of it, and refuses files over limit bytes.
func readConfigFile(path string, limit int64) ([]byte, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, errors.Errorf("invalid config file name %q", name)
	}
	f, err := os.DirFS(dir).Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat config %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Errorf("config %s is not a regular file", path)
	}
	if info.Size() > limit {
		return nil, errors.Errorf("config %s is %d bytes, limit %d", path, info.Size(), limit)
	}
	raw, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if int64(len(raw)) > limit {
		return nil, errors.Errorf("config %s grew past limit %d", path, limit)
	}
	return raw, nil
}
