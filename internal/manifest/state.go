package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/assoc/internal/array"
	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// StateVersion is the item-state file format version.
const StateVersion = 1

// State is the item-state file written after an update: the world
// transform of every live item of every array.
type State struct {
	Version   int          `toml:"version"`
	Manifest  string       `toml:"manifest"`
	RunID     string       `toml:"run_id,omitempty"`
	UpdatedAt time.Time    `toml:"updated_at"`
	Arrays    []ArrayState `toml:"arrays"`
}

// ArrayState is one array in the state file.
type ArrayState struct {
	Name   string      `toml:"name"`
	Kind   string      `toml:"kind"`
	Status string      `toml:"status"`
	Items  []ItemState `toml:"items,omitempty"`
}

// ItemState is one item in the state file. Override names the override
// that replaces the item, if any.
type ItemState struct {
	array.ItemLocator
	Transform [][]float64 `toml:"transform"`
	Override  string      `toml:"override,omitempty"`
}

// StatePath returns where the state file of the manifest at manifestPath
// lives. An empty dir keeps it next to the manifest.
func StatePath(manifestPath, dir string) string {
	base := strings.TrimSuffix(filepath.Base(manifestPath), filepath.Ext(manifestPath)) + ".state.toml"
	if dir == "" {
		dir = filepath.Dir(manifestPath)
	}
	return filepath.Join(dir, base)
}

// Snapshot captures the current items of every array in s.
func (s *Session) Snapshot(runID string) *State {
	st := &State{
		Version:   StateVersion,
		Manifest:  s.manifest.Name,
		RunID:     runID,
		UpdatedAt: time.Now().UTC(),
	}
	for _, ref := range s.Arrays() {
		as := ArrayState{Name: ref.Name, Kind: ref.Spec.Kind, Status: StatusOf(ref.Action)}
		ab, ok := ref.Action.Body().(*array.ArrayBody)
		if ok {
			base := ab.Base()
			for _, it := range ab.Parameters().All() {
				if it.Erased {
					continue
				}
				is := ItemState{ItemLocator: it.Locator, Transform: base.Mul(it.Transform).Rows()}
				if it.Replaced {
					is.Override = s.ActionName(it.Owner)
				}
				as.Items = append(as.Items, is)
			}
		}
		st.Arrays = append(st.Arrays, as)
	}
	return st
}

// StatusOf reports the status of an action, naming proxies separately.
func StatusOf(a *assoc.Action) string {
	if a.Proxy() != nil {
		return "Proxy"
	}
	return a.Status().String()
}

// LoadState reads the state file at path. Returns an empty state if the
// file does not exist.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Version: StateVersion}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if st.Version != StateVersion {
		return nil, fmt.Errorf("%w: state file version %d (want %d)", assoc.ErrDecodeVersion, st.Version, StateVersion)
	}
	return &st, nil
}

// SaveState writes the state file atomically (write temp + rename).
func SaveState(path string, st *State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}

// Matrix returns the item's world transform.
func (is ItemState) Matrix() (geom.Matrix, error) {
	return geom.MatrixFromRows(is.Transform)
}
