// Package filterdsl defines the metadata filter DSL accepted by query
// requests and translates it to a parameterized SQL fragment, grounded on
// the column-mapping and FilterValidationError semantics the teacher's
// persistence layer expects its callers to already speak.
package filterdsl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError is returned — never panicked — for an unknown field or
// operator. Callers decide whether to surface it as a 400 or swallow it
// (the FilterParser treats an inferred filter's ValidationError as "no
// filter").
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "filterdsl: " + e.Reason }

// Combine joins sibling conditions.
type Combine string

const (
	And Combine = "and"
	Or  Combine = "or"
)

// Op is a condition operator.
type Op string

const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpIsNull     Op = "isNull"
	OpIsNotNull  Op = "isNotNull"
	OpIn         Op = "in"
	OpNotIn      Op = "notIn"
	OpBetween    Op = "between"
	OpNotBetween Op = "notBetween"
)

// Range is the bound pair for between/notBetween.
type Range struct {
	Low  any `json:"low"`
	High any `json:"high"`
}

// Condition is one leaf of the DSL: a scalar, list, or range shape
// depending on which fields are populated.
type Condition struct {
	Field  string `json:"field"`
	Op     Op     `json:"op"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Range  *Range `json:"range,omitempty"`
}

// Filter is a set of conditions joined by a single combine operator.
type Filter struct {
	Conditions []Condition `json:"conditions"`
	Combine    Combine     `json:"combine"`
}

var temporalFields = map[string]bool{
	"ingestedAt": true,
	"createdAt":  true,
	"updatedAt":  true,
}

var columnMapping = map[string]string{
	"docType":    "c.doc_type",
	"repoId":     "c.repo_id",
	"lang":       "c.lang",
	"path":       "c.path",
	"mimeType":   "d.mime_type",
	"ingestedAt": "d.ingested_at",
	"createdAt":  "c.created_at",
	"updatedAt":  "c.updated_at",
}

var scalarOps = map[Op]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// ParseFlat converts a legacy flat object {field: value} into a Filter
// equivalent to a conjunction of eq conditions.
func ParseFlat(flat map[string]any) Filter {
	conditions := make([]Condition, 0, len(flat))
	fields := make([]string, 0, len(flat))
	for f := range flat {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		conditions = append(conditions, Condition{Field: f, Op: OpEq, Value: flat[f]})
	}
	return Filter{Conditions: conditions, Combine: And}
}

// ParseJSON parses either the tagged-union Filter shape or a legacy flat
// object from raw JSON.
func ParseJSON(raw []byte) (Filter, error) {
	var tagged struct {
		Conditions []Condition `json:"conditions"`
		Combine    Combine     `json:"combine"`
	}
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Conditions != nil {
		combine := tagged.Combine
		if combine == "" {
			combine = And
		}
		return Filter{Conditions: tagged.Conditions, Combine: combine}, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return Filter{}, &ValidationError{Reason: "unrecognized filter shape"}
	}
	return ParseFlat(flat), nil
}

// Translate renders f to a parameterized SQL fragment. The returned sql
// begins with " AND (...)" or is empty when f has no conditions;
// parameters are numbered starting at paramOffset+1.
func Translate(f Filter, paramOffset int) (sql string, params []any, err error) {
	if len(f.Conditions) == 0 {
		return "", nil, nil
	}

	combine := f.Combine
	if combine == "" {
		combine = And
	}
	joiner := " AND "
	if combine == Or {
		joiner = " OR "
	}

	clauses := make([]string, 0, len(f.Conditions))
	params = make([]any, 0, len(f.Conditions))
	n := paramOffset

	for _, c := range f.Conditions {
		column, ok := columnMapping[c.Field]
		if !ok {
			return "", nil, &ValidationError{Reason: fmt.Sprintf("unknown field %q", c.Field)}
		}

		clause, consumed, cerr := translateCondition(column, c, temporalFields[c.Field], &n)
		if cerr != nil {
			return "", nil, cerr
		}
		clauses = append(clauses, clause)
		params = append(params, consumed...)
	}

	return " AND (" + strings.Join(clauses, joiner) + ")", params, nil
}

// comparisonOps are gt/gte/lt/lte — reserved for temporal fields per the
// DSL's field enumeration.
var comparisonOps = map[Op]bool{OpGt: true, OpGte: true, OpLt: true, OpLte: true}

func translateCondition(column string, c Condition, temporal bool, n *int) (string, []any, error) {
	if comparisonOps[c.Op] && !temporal {
		return "", nil, &ValidationError{Reason: fmt.Sprintf("operator %q is only valid on temporal fields", c.Op)}
	}
	if (c.Op == OpBetween || c.Op == OpNotBetween) && !temporal {
		return "", nil, &ValidationError{Reason: fmt.Sprintf("operator %q is only valid on temporal fields", c.Op)}
	}

	switch c.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		symbol, ok := scalarOps[c.Op]
		if !ok {
			return "", nil, &ValidationError{Reason: fmt.Sprintf("unknown operator %q", c.Op)}
		}
		*n++
		return fmt.Sprintf("%s %s $%d", column, symbol, *n), []any{c.Value}, nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", column), nil, nil

	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", column), nil, nil

	case OpIn, OpNotIn:
		if len(c.Values) == 0 {
			return "", nil, &ValidationError{Reason: "in/notIn requires non-empty values"}
		}
		placeholders := make([]string, len(c.Values))
		params := make([]any, len(c.Values))
		for i, v := range c.Values {
			*n++
			placeholders[i] = fmt.Sprintf("$%d", *n)
			params[i] = v
		}
		op := "IN"
		if c.Op == OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", column, op, strings.Join(placeholders, ", ")), params, nil

	case OpBetween, OpNotBetween:
		if c.Range == nil {
			return "", nil, &ValidationError{Reason: "between/notBetween requires a range"}
		}
		*n++
		loParam := *n
		*n++
		hiParam := *n
		if c.Op == OpBetween {
			return fmt.Sprintf("%s >= $%d AND %s <= $%d", column, loParam, column, hiParam), []any{c.Range.Low, c.Range.High}, nil
		}
		return fmt.Sprintf("(%s < $%d OR %s > $%d)", column, loParam, column, hiParam), []any{c.Range.Low, c.Range.High}, nil

	default:
		return "", nil, &ValidationError{Reason: fmt.Sprintf("unknown operator %q", c.Op)}
	}
}
