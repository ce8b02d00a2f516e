// Package statefile persists an engine and its ledger as a single CBOR file.
package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/ledger"
)

// Version is written into every file; Load rejects other versions.
const Version = 1

// File is the on-disk layout.
type File struct {
	Version int                     `cbor:"version"`
	Engine  core.Snapshot           `cbor:"engine"`
	Ledger  []ledger.AccountBalance `cbor:"ledger"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("statefile: build CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("statefile: build CBOR decoder: %v", err))
	}
}

// Encode serializes the engine and ledger state.
func Encode(e *core.Engine, l *ledger.Ledger) ([]byte, error) {
	f := File{
		Version: Version,
		Engine:  e.Snapshot(),
		Ledger:  l.Snapshot(),
	}
	data, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a state file and rebuilds the ledger and engine.
func Decode(data []byte, cfg core.Config, opts ...core.Option) (*core.Engine, *ledger.Ledger, error) {
	var f File
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("decode state: %w", err)
	}
	if f.Version != Version {
		return nil, nil, fmt.Errorf("unsupported state file version %d", f.Version)
	}
	l := ledger.Restore(f.Ledger)
	e, err := core.Restore(cfg, l, f.Engine, opts...)
	if err != nil {
		return nil, nil, err
	}
	return e, l, nil
}

// Load reads the file at path. A missing file yields an empty engine and ledger.
func Load(path string, cfg core.Config, opts ...core.Option) (*core.Engine, *ledger.Ledger, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		l := ledger.New()
		return core.NewEngine(cfg, l, opts...), l, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read state file: %w", err)
	}
	return Decode(data, cfg, opts...)
}

// Save writes the state atomically by renaming a temp file over path.
func Save(path string, e *core.Engine, l *ledger.Ledger) error {
	data, err := Encode(e, l)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
