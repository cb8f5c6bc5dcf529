package amortization

import (
	"fmt"
	"strings"

	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

// Method decides how each installment splits between principal and interest.
type Method string

const (
	// French keeps the installment amount constant.
	French Method = "french"
	// German keeps the principal portion constant; installments decrease.
	German Method = "german"
	// American pays interest only and returns the whole principal with the last installment.
	American Method = "american"
)

// Methods lists every supported method.
var Methods = []Method{French, German, American}

var methodAliases = map[string]Method{
	"french":    French,
	"frances":   French,
	"francés":   French,
	"german":    German,
	"aleman":    German,
	"alemán":    German,
	"american":  American,
	"americano": American,
}

// ParseMethod maps an identifier to a Method. Unknown identifiers are rejected; there is no default.
func ParseMethod(s string) (Method, error) {
	m, ok := methodAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", customError.WrapInvalidConfiguration(fmt.Sprintf("unknown amortization method %q", s))
	}
	return m, nil
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case French, German, American:
		return true
	}
	return false
}

func (m Method) String() string {
	return string(m)
}
