package account

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provision is an account created at startup with a zero balance.
type Provision struct {
	ID    int   `yaml:"id"`
	Limit int64 `yaml:"limit"`
}

// ParseProvisions parses entries in the "id:limit" format.
func ParseProvisions(entries []string) ([]Provision, error) {
	ps := make([]Provision, 0, len(entries))
	for _, e := range entries {
		sID, sLimit, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is not in the id:limit format", ErrInvalidProvision, e)
		}

		id, err := strconv.Atoi(sID)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: id: %w", ErrInvalidProvision, e, err)
		}
		limit, err := strconv.ParseInt(sLimit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: limit: %w", ErrInvalidProvision, e, err)
		}

		ps = append(ps, Provision{ID: id, Limit: limit})
	}

	if err := validateProvisions(ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// DecodeProvisions reads a YAML document of the form:
//
//	accounts:
//	  - id: 1
//	    limit: 100000
func DecodeProvisions(r io.Reader) ([]Provision, error) {
	var doc struct {
		Accounts []Provision `yaml:"accounts"`
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding yaml: %w", ErrInvalidProvision, err)
	}

	if err := validateProvisions(doc.Accounts); err != nil {
		return nil, err
	}
	return doc.Accounts, nil
}

func validateProvisions(ps []Provision) error {
	if len(ps) == 0 {
		return fmt.Errorf("%w: no accounts", ErrInvalidProvision)
	}

	seen := make(map[int]bool, len(ps))
	for _, p := range ps {
		switch {
		case p.ID < 1:
			return fmt.Errorf("%w: id %d must be positive", ErrInvalidProvision, p.ID)
		case p.Limit < 0:
			return fmt.Errorf("%w: account %d: limit %d must not be negative", ErrInvalidProvision, p.ID, p.Limit)
		case seen[p.ID]:
			return fmt.Errorf("%w: account %d is duplicated", ErrInvalidProvision, p.ID)
		}
		seen[p.ID] = true
	}

	return nil
}
