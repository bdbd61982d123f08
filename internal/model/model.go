package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ValueKind bir kural değerinin tipini belirtir
type ValueKind int

const (
	KindInt ValueKind = iota
	KindBool
)

// Value kural sonuçlarında kullanılan bool ya da tamsayı değer
type Value struct {
	Kind ValueKind
	Bool bool
	Int  int
}

// BoolValue bool tipinde bir Value oluşturur
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// IntValue tamsayı tipinde bir Value oluşturur
func IntValue(n int) Value {
	return Value{Kind: KindInt, Int: n}
}

// Ptr returns a pointer to a copy of v, for use as a Recommended value.
func (v Value) Ptr() *Value {
	return &v
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindBool {
		return v.Bool == o.Bool
	}
	return v.Int == o.Int
}

func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.Itoa(v.Int)
}

// MarshalJSON encodes the value as a bare JSON bool or number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindBool {
		return json.Marshal(v.Bool)
	}
	return json.Marshal(v.Int)
}

// UnmarshalJSON accepts a JSON bool or integer.
func (v *Value) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = BoolValue(b)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a bool or an integer: %s", string(data))
	}
	*v = IntValue(n)
	return nil
}

// RuleResult tek bir tempdb kuralının değerlendirme sonucu
type RuleResult struct {
	Rule string `json:"rule"`
	// Recommended nil ise kural yalnızca bilgi amaçlıdır ve ihlal üretmez.
	Recommended    *Value `json:"recommended"`
	CurrentSetting Value  `json:"current_setting"`
	Notes          string `json:"notes"`
}

// IsViolation reports whether the current setting deviates from a fixed recommendation.
func (r RuleResult) IsViolation() bool {
	return r.Recommended != nil && !r.Recommended.Equal(r.CurrentSetting)
}

// RecommendedString renders the recommendation, "n/a" for informational rules.
func (r RuleResult) RecommendedString() string {
	if r.Recommended == nil {
		return "n/a"
	}
	return r.Recommended.String()
}

// HasViolations is true when at least one result is in violation.
func HasViolations(results []RuleResult) bool {
	for _, r := range results {
		if r.IsViolation() {
			return true
		}
	}
	return false
}

// Report bir sunucu için yapılan tek bir tempdb kontrolünün çıktısı
type Report struct {
	RunID             string       `json:"run_id"`
	Server            string       `json:"server"`
	Version           string       `json:"version"`
	MajorVersion      int          `json:"major_version"`
	LogicalProcessors int          `json:"logical_processors"`
	CollectedAt       time.Time    `json:"collected_at"`
	Results           []RuleResult `json:"results"`
	HasViolations     bool         `json:"has_violations"`
}

// NewReport stamps a fresh run ID and UTC collection time on the results.
func NewReport(server, version string, majorVersion, processors int, results []RuleResult, hasViolations bool) *Report {
	return &Report{
		RunID:             uuid.NewString(),
		Server:            server,
		Version:           version,
		MajorVersion:      majorVersion,
		LogicalProcessors: processors,
		CollectedAt:       time.Now().UTC(),
		Results:           results,
		HasViolations:     hasViolations,
	}
}

// Violations returns the results that deviate from their recommendation, in order.
func (r *Report) Violations() []RuleResult {
	var out []RuleResult
	for _, res := range r.Results {
		if res.IsViolation() {
			out = append(out, res)
		}
	}
	return out
}
