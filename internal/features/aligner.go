package features

import "math"

// emiScale converts the per-month installment (loan amounts are in thousands)
// back into the currency unit incomes are expressed in.
const emiScale = 1000.0

// Derived holds the engineered numeric quantities computed once per record.
type Derived struct {
	TotalIncome   float64
	EMI           float64
	BalanceIncome float64
}

// Derive computes the engineered quantities. A loan term below one month
// (including zero) is treated as one month.
func Derive(r ApplicationRecord) Derived {
	total := r.ApplicantIncome + r.CoapplicantIncome
	emi := r.LoanAmount / math.Max(r.LoanAmountTerm, 1.0)
	return Derived{
		TotalIncome:   total,
		EMI:           emi,
		BalanceIncome: total - emi*emiScale,
	}
}

func (d Derived) lookup(name string) (float64, bool) {
	switch name {
	case FeatureTotalIncome:
		return d.TotalIncome, true
	case FeatureEMI:
		return d.EMI, true
	case FeatureBalanceIncome:
		return d.BalanceIncome, true
	}
	return 0, false
}

// Aligner rebuilds a model's input row from an application record. It is
// stateless after construction and safe for concurrent use.
type Aligner struct {
	groups []CategoricalGroup
}

// NewAligner returns an aligner using the given categorical encoding table.
// A nil table selects DefaultCategoricalGroups.
func NewAligner(groups []CategoricalGroup) *Aligner {
	if groups == nil {
		groups = DefaultCategoricalGroups
	}
	return &Aligner{groups: groups}
}

// Align builds the row for schema. Columns come out in schema order and every
// schema name is present; names no rule recognizes are 0.0.
// With a nil schema the raw record fields are passed through instead.
func (a *Aligner) Align(r ApplicationRecord, schema Schema) Row {
	if schema == nil {
		return RawRow(r)
	}

	d := Derive(r)
	row := Row{
		Columns: make([]string, len(schema)),
		Values:  make([]Value, len(schema)),
	}
	for i, name := range schema {
		row.Columns[i] = name
		row.Values[i] = Number(a.resolve(r, d, name))
	}
	return row
}

func (a *Aligner) resolve(r ApplicationRecord, d Derived, name string) float64 {
	if v, ok := r.Numeric(name); ok {
		return v
	}
	if v, ok := d.lookup(name); ok {
		return v
	}
	if g, category, ok := matchGroup(a.groups, name); ok {
		if value, _ := r.Categorical(g.Field); value == category {
			return 1.0
		}
		return 0.0
	}
	return 0.0
}

// Unmapped lists schema names that no rule maps to request data: names that
// match nothing, and indicator columns for categories outside the encoding
// table. Both always resolve to 0.0, which usually means the schema drifted
// from the training pipeline this service was built against.
func (a *Aligner) Unmapped(schema Schema) []string {
	var out []string
	for _, name := range schema {
		if _, ok := (ApplicationRecord{}).Numeric(name); ok {
			continue
		}
		if _, ok := (Derived{}).lookup(name); ok {
			continue
		}
		if g, category, ok := matchGroup(a.groups, name); ok && g.Known(category) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// RawRow returns the record's fields in declaration order without any
// engineering. Categorical fields stay text.
func RawRow(r ApplicationRecord) Row {
	values := []Value{
		Text(r.Gender),
		Text(r.Married),
		Text(r.Dependents),
		Text(r.Education),
		Text(r.SelfEmployed),
		Number(r.ApplicantIncome),
		Number(r.CoapplicantIncome),
		Number(r.LoanAmount),
		Number(r.LoanAmountTerm),
		Number(r.CreditHistory),
		Text(r.PropertyArea),
	}
	columns := make([]string, len(RawFieldOrder))
	copy(columns, RawFieldOrder)
	return Row{Columns: columns, Values: values}
}
