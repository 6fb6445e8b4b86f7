package ml

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"loan-predictor/internal/features"
)

// PredictRequest is the wire form of an application. Pointers let the
// validator tell a missing field from a legitimate zero such as
// CoapplicantIncome = 0.
type PredictRequest struct {
	Gender            *string  `json:"Gender" validate:"required"`
	Married           *string  `json:"Married" validate:"required"`
	Dependents        *string  `json:"Dependents" validate:"required"`
	Education         *string  `json:"Education" validate:"required"`
	SelfEmployed      *string  `json:"Self_Employed" validate:"required"`
	ApplicantIncome   *float64 `json:"ApplicantIncome" validate:"required"`
	CoapplicantIncome *float64 `json:"CoapplicantIncome" validate:"required"`
	LoanAmount        *float64 `json:"LoanAmount" validate:"required"`
	LoanAmountTerm    *float64 `json:"Loan_Amount_Term" validate:"required"`
	CreditHistory     *float64 `json:"Credit_History" validate:"required"`
	PropertyArea      *string  `json:"Property_Area" validate:"required"`
}

// FieldError names one field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// RequestValidator checks PredictRequest values. It is safe for concurrent use.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator builds a validator that reports JSON field names.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate returns the failing fields, or nil when req is complete.
func (rv *RequestValidator) Validate(req PredictRequest) ([]FieldError, error) {
	err := rv.v.Struct(req)
	if err == nil {
		return nil, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out, nil
}

// Record converts a validated request. Call only after Validate succeeds.
func (req PredictRequest) Record() features.ApplicationRecord {
	return features.ApplicationRecord{
		Gender:            *req.Gender,
		Married:           *req.Married,
		Dependents:        *req.Dependents,
		Education:         *req.Education,
		SelfEmployed:      *req.SelfEmployed,
		ApplicantIncome:   *req.ApplicantIncome,
		CoapplicantIncome: *req.CoapplicantIncome,
		LoanAmount:        *req.LoanAmount,
		LoanAmountTerm:    *req.LoanAmountTerm,
		CreditHistory:     *req.CreditHistory,
		PropertyArea:      *req.PropertyArea,
	}
}
