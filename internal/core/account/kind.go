package account

import "fmt"

// Set of transaction kinds. The zero Kind is not a valid kind.
var (
	Credit = Kind{code: "c"}
	Debit  = Kind{code: "d"}
)

var kinds = map[string]Kind{
	Credit.code: Credit,
	Debit.code:  Debit,
}

// Kind represents the direction of a transaction.
type Kind struct {
	code string
}

// ParseKind parses the wire code of a kind, "c" for credit and "d" for debit.
func ParseKind(code string) (Kind, error) {
	k, ok := kinds[code]
	if !ok {
		return Kind{}, fmt.Errorf("invalid kind %q", code)
	}
	return k, nil
}

// String returns the wire code of the kind.
func (k Kind) String() string {
	return k.code
}

// adjustment returns the signed balance movement of value for the kind.
func (k Kind) adjustment(value int64) int64 {
	if k == Debit {
		return -value
	}
	return value
}
