// Package datasets holds the static region and district arrays the search
// engine indexes next to the remote essentials feed.
package datasets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed regions.toml
var bundled string

// ErrInvalidDataset is wrapped by every validation failure.
var ErrInvalidDataset = errors.New("invalid dataset")

// Region is a province with the code used in its page route.
type Region struct {
	Name string `toml:"name"`
	Code string `toml:"code"`
}

// District belongs to the region named by State.
type District struct {
	District string `toml:"district"`
	State    string `toml:"state"`
}

// Dataset is the pair of static arrays plus the reverse name -> code lookup.
type Dataset struct {
	Regions   []Region   `toml:"region"`
	Districts []District `toml:"district"`

	codes map[string]string
}

// Bundled returns the dataset compiled into the binary.
func Bundled() (*Dataset, error) {
	return Parse(bundled)
}

// LoadFile reads a dataset from a TOML file with the bundled schema.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	ds, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Load returns the dataset at path, or the bundled one when path is empty.
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Bundled()
	}
	return LoadFile(path)
}

// Parse decodes and validates a TOML dataset document.
func Parse(doc string) (*Dataset, error) {
	var ds Dataset
	if _, err := toml.Decode(doc, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (ds *Dataset) validate() error {
	ds.codes = make(map[string]string, len(ds.Regions))
	seenCodes := make(map[string]bool, len(ds.Regions))
	for _, r := range ds.Regions {
		if r.Name == "" || r.Code == "" {
			return fmt.Errorf("%w: region with empty name or code", ErrInvalidDataset)
		}
		if seenCodes[r.Code] {
			return fmt.Errorf("%w: duplicate region code %q", ErrInvalidDataset, r.Code)
		}
		seenCodes[r.Code] = true
		ds.codes[r.Name] = r.Code
	}
	for _, d := range ds.Districts {
		if _, ok := ds.codes[d.State]; !ok {
			return fmt.Errorf("%w: district %q references unknown region %q", ErrInvalidDataset, d.District, d.State)
		}
	}
	return nil
}

// CodeFor returns the region code for a region name.
func (ds *Dataset) CodeFor(name string) (string, bool) {
	code, ok := ds.codes[name]
	return code, ok
}
