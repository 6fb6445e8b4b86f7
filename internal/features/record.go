// Package features turns loan applications into the feature rows a trained
// classifier expects. It owns the application record, the ordered feature
// schema a model declares, and the aligner that rebuilds engineered columns
// (derived ratios and one-hot indicators) from raw request fields.
package features

// Raw field names as they appear on the wire and in training data.
const (
	FieldGender            = "Gender"
	FieldMarried           = "Married"
	FieldDependents        = "Dependents"
	FieldEducation         = "Education"
	FieldSelfEmployed      = "Self_Employed"
	FieldApplicantIncome   = "ApplicantIncome"
	FieldCoapplicantIncome = "CoapplicantIncome"
	FieldLoanAmount        = "LoanAmount"
	FieldLoanAmountTerm    = "Loan_Amount_Term"
	FieldCreditHistory     = "Credit_History"
	FieldPropertyArea      = "Property_Area"
)

// Engineered feature names.
const (
	FeatureTotalIncome   = "TotalIncome"
	FeatureEMI           = "EMI"
	FeatureBalanceIncome = "Balance_Income"
)

// RawFieldOrder is the declaration order of ApplicationRecord fields. It is the
// column order of the row handed to models that publish no schema.
var RawFieldOrder = []string{
	FieldGender,
	FieldMarried,
	FieldDependents,
	FieldEducation,
	FieldSelfEmployed,
	FieldApplicantIncome,
	FieldCoapplicantIncome,
	FieldLoanAmount,
	FieldLoanAmountTerm,
	FieldCreditHistory,
	FieldPropertyArea,
}

// ApplicationRecord is a validated loan application. It is passed by value and
// never modified after construction.
type ApplicationRecord struct {
	Gender            string  `json:"Gender"`
	Married           string  `json:"Married"`
	Dependents        string  `json:"Dependents"`
	Education         string  `json:"Education"`
	SelfEmployed      string  `json:"Self_Employed"`
	ApplicantIncome   float64 `json:"ApplicantIncome"`
	CoapplicantIncome float64 `json:"CoapplicantIncome"`
	LoanAmount        float64 `json:"LoanAmount"`
	LoanAmountTerm    float64 `json:"Loan_Amount_Term"`
	CreditHistory     float64 `json:"Credit_History"`
	PropertyArea      string  `json:"Property_Area"`
}

// Categorical returns the record's value for a categorical field name.
func (r ApplicationRecord) Categorical(field string) (string, bool) {
	switch field {
	case FieldGender:
		return r.Gender, true
	case FieldMarried:
		return r.Married, true
	case FieldDependents:
		return r.Dependents, true
	case FieldEducation:
		return r.Education, true
	case FieldSelfEmployed:
		return r.SelfEmployed, true
	case FieldPropertyArea:
		return r.PropertyArea, true
	}
	return "", false
}

// Numeric returns the record's value for a direct numeric field name.
func (r ApplicationRecord) Numeric(field string) (float64, bool) {
	switch field {
	case FieldApplicantIncome:
		return r.ApplicantIncome, true
	case FieldCoapplicantIncome:
		return r.CoapplicantIncome, true
	case FieldLoanAmount:
		return r.LoanAmount, true
	case FieldLoanAmountTerm:
		return r.LoanAmountTerm, true
	case FieldCreditHistory:
		return r.CreditHistory, true
	}
	return 0, false
}
