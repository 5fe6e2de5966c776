package syncservice

import (
	"errors"
	"fmt"
	"os"

	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/syncx"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of SYNC_CATALOG_FILE
type catalogFile struct {
	Collections []collectionSpec `yaml:"collections"`
}

type collectionSpec struct {
	Name        string        `yaml:"name"`
	Model       string        `yaml:"model"`
	Domain      [][]any       `yaml:"domain"`
	DateField   string        `yaml:"date_field"`
	DateLayout  string        `yaml:"date_layout"`
	Order       string        `yaml:"order"`
	ReadMode    string        `yaml:"read_mode"`
	PageSize    int           `yaml:"page_size"`
	MaxPages    int           `yaml:"max_pages"`
	Limit       int           `yaml:"limit"`
	Table       string        `yaml:"table"`
	ConflictKey string        `yaml:"conflict_key"`
	BatchSize   int           `yaml:"batch_size"`
	Columns     []columnSpec  `yaml:"columns"`
	Derived     []derivedSpec `yaml:"derived"`
}

type columnSpec struct {
	Name        string   `yaml:"name"`
	Sources     []string `yaml:"sources"`
	Kind        string   `yaml:"kind"`
	NonNegative bool     `yaml:"non_negative"`
	Default     any      `yaml:"default"`
}

// derivedSpec supports the one derived shape the dashboard needs: a - b
type derivedSpec struct {
	Name       string   `yaml:"name"`
	Difference []string `yaml:"difference"`
}

// LoadCatalogFile reads overrides from path and applies them on top of base.
// A named built-in is patched field by field (columns and domain are replaced
// wholesale); an unknown name adds a new collection.
func LoadCatalogFile(path string, base *Catalog, d Defaults) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return applyCatalogFile(f, base, d)
}

func applyCatalogFile(f catalogFile, base *Catalog, d Defaults) (*Catalog, error) {
	out := &Catalog{byName: make(map[string]Collection, len(base.order))}
	for _, col := range base.All() {
		if err := out.put(col); err != nil {
			return nil, err
		}
	}

	for i, spec := range f.Collections {
		if spec.Name == "" {
			return nil, fmt.Errorf("catalog file: collection %d has no name", i)
		}
		col, exists := out.byName[spec.Name]
		if !exists {
			col = Collection{Name: spec.Name}
		}
		if err := spec.patch(&col); err != nil {
			return nil, fmt.Errorf("catalog file: collection %s: %w", spec.Name, err)
		}
		if err := out.put(col.withDefaults(d)); err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
	}
	return out, nil
}

func (s collectionSpec) patch(c *Collection) error {
	setString(&c.Model, s.Model)
	setString(&c.DateField, s.DateField)
	setString(&c.DateLayout, s.DateLayout)
	setString(&c.Order, s.Order)
	setString(&c.Table, s.Table)
	setString(&c.ConflictKey, s.ConflictKey)
	if s.ReadMode != "" {
		c.ReadMode = ReadMode(s.ReadMode)
	}
	setInt(&c.PageSize, s.PageSize)
	setInt(&c.MaxPages, s.MaxPages)
	setInt(&c.Limit, s.Limit)
	setInt(&c.BatchSize, s.BatchSize)

	if s.Domain != nil {
		domain, err := parseDomain(s.Domain)
		if err != nil {
			return err
		}
		c.Domain = domain
	}

	if s.Columns != nil {
		cols := make([]syncx.Column, 0, len(s.Columns))
		for _, cs := range s.Columns {
			kind := syncx.Kind(cs.Kind)
			if kind == "" {
				kind = syncx.KindAny
			}
			sources := cs.Sources
			if len(sources) == 0 {
				sources = []string{cs.Name}
			}
			cols = append(cols, syncx.Column{
				Name:        cs.Name,
				Sources:     sources,
				Kind:        kind,
				NonNegative: cs.NonNegative,
				Default:     cs.Default,
			})
		}
		c.Map.Columns = cols
	}

	if s.Derived != nil {
		derived := make([]syncx.Derived, 0, len(s.Derived))
		for _, ds := range s.Derived {
			if len(ds.Difference) != 2 {
				return fmt.Errorf("derived column %q: difference needs exactly two columns", ds.Name)
			}
			derived = append(derived, syncx.Derived{Name: ds.Name, Fn: syncx.Difference(ds.Difference[0], ds.Difference[1])})
		}
		c.Map.Derived = derived
	}
	return nil
}

// parseDomain converts [[field, op, value], ...] into a Domain
func parseDomain(raw [][]any) (odoo.Domain, error) {
	domain := make(odoo.Domain, 0, len(raw))
	for i, term := range raw {
		if len(term) != 3 {
			return nil, fmt.Errorf("domain term %d: want [field, operator, value], got %v", i, term)
		}
		field, ok1 := term[0].(string)
		op, ok2 := term[1].(string)
		if !ok1 || !ok2 || field == "" || op == "" {
			return nil, errors.New("domain term field and operator must be non-empty strings")
		}
		domain = append(domain, odoo.Condition{Field: field, Operator: op, Value: term[2]})
	}
	return domain, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
