// pkg/model/method.go
package model

import "strings"

// MethodID identifies an anonymization method chosen for a column
type MethodID string

const (
	MethodNone            MethodID = "none"
	MethodHashSHA256      MethodID = "hash-sha256"
	MethodHashMD5         MethodID = "hash-md5"
	MethodRandomToken     MethodID = "random-token"
	MethodRangeGeneralize MethodID = "range-generalize"
	MethodSwap            MethodID = "swap"
)

// Parameter keys accepted in MethodSelection.Params
const (
	ParamRangeSize   = "range_size"
	ParamTokenLength = "token_length"
)

// methodAliases maps the short form values used by the upload form to method IDs
var methodAliases = map[string]MethodID{
	"sha256":        MethodHashSHA256,
	"md5":           MethodHashMD5,
	"random_string": MethodRandomToken,
	"generalize":    MethodRangeGeneralize,
	"":              MethodNone,
}

var methodLabels = map[MethodID]string{
	MethodNone:            "No anonymization",
	MethodHashSHA256:      "SHA-256 pseudonymization",
	MethodHashMD5:         "MD5 pseudonymization",
	MethodRandomToken:     "Random token substitution",
	MethodRangeGeneralize: "Range generalization",
	MethodSwap:            "Value swap",
}

// MethodSelection is the method requested for one column plus its parameters.
// Params values may be numbers or strings; unparsable values fall back to defaults.
type MethodSelection struct {
	Method MethodID               `json:"method" yaml:"method"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// Selection maps column name to the requested method
type Selection map[string]MethodSelection

// ParseMethodID normalizes a raw identifier, accepting the short aliases.
// ok is false when the identifier is not recognized.
func ParseMethodID(raw string) (MethodID, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if id, exists := methodAliases[normalized]; exists {
		return id, true
	}
	id := MethodID(normalized)
	if _, known := methodLabels[id]; known {
		return id, true
	}
	return id, false
}

// Label returns the human-readable label used in audit reports
func (m MethodID) Label() string {
	if label, ok := methodLabels[m]; ok {
		return label
	}
	return "Unknown method (" + string(m) + ")"
}

// Method returns the selection for a column, MethodNone if absent
func (s Selection) Method(column string) MethodSelection {
	if sel, ok := s[column]; ok {
		return sel
	}
	return MethodSelection{Method: MethodNone}
}
