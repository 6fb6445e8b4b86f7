package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"loan-predictor/internal/features"
	"loan-predictor/internal/ml"
)

func main() {
	fmt.Println("🧪 Testing Loan Model Artifact")
	fmt.Println("==============================")

	modelPath := "models/random_forest_model.json"
	if len(os.Args) > 1 {
		modelPath = os.Args[1]
	}

	absPath, err := filepath.Abs(modelPath)
	if err != nil {
		log.Fatalf("❌ Failed to get absolute path: %v", err)
	}
	fmt.Printf("📁 Model path: %s\n", absPath)

	// Test 1: Load the artifact
	fmt.Println("\n🔧 Test 1: Loading model...")
	model, err := ml.LoadModel(absPath)
	if err != nil {
		log.Fatalf("❌ Failed to load model: %v", err)
	}
	defer model.Close()

	info := model.Info()
	caps := model.Capabilities()
	fmt.Printf("✅ Loaded %s (version %s, %d features, classes %v)\n", info.ModelType, info.Version, info.NFeatures, info.Classes)
	fmt.Printf("   probabilities: %v, declared schema: %v\n", caps.SupportsProbabilities, caps.HasDeclaredSchema)

	aligner := features.NewAligner(nil)
	if unmapped := aligner.Unmapped(model.Schema()); len(unmapped) > 0 {
		fmt.Printf("  ⚠️  Features no request field maps to (always 0): %v\n", unmapped)
	}

	predictor := ml.NewPredictor(model, aligner, nil)

	// Test 2: Reference applications
	fmt.Println("\n🔧 Test 2: Predicting reference applications...")
	base := features.ApplicationRecord{
		Gender: "Male", Married: "Yes", Dependents: "0", Education: "Graduate",
		SelfEmployed: "No", ApplicantIncome: 5000, CoapplicantIncome: 0,
		LoanAmount: 128, LoanAmountTerm: 360, CreditHistory: 1, PropertyArea: "Urban",
	}
	testCases := []struct {
		name     string
		mutate   func(r *features.ApplicationRecord)
		expected string
	}{
		{"Typical graduate applicant", func(r *features.ApplicationRecord) {}, "Should likely approve"},
		{"No credit history", func(r *features.ApplicationRecord) { r.CreditHistory = 0 }, "Should likely reject"},
		{"Low income, large loan", func(r *features.ApplicationRecord) {
			r.ApplicantIncome = 1500
			r.LoanAmount = 600
		}, "Should likely reject"},
		{"Zero loan term", func(r *features.ApplicationRecord) { r.LoanAmountTerm = 0 }, "Must not fail"},
		{"Unknown property area", func(r *features.ApplicationRecord) { r.PropertyArea = "Suburban" }, "All area indicators 0"},
	}

	for i, tc := range testCases {
		rec := base
		tc.mutate(&rec)
		fmt.Printf("\n  Test 2.%d: %s\n", i+1, tc.name)

		d, err := predictor.Predict(rec)
		if err != nil {
			fmt.Printf("    ❌ Prediction failed: %v\n", err)
			continue
		}
		status := "❌ REJECT"
		if d.Status == ml.StatusApproved {
			status = "✅ APPROVE"
		}
		fmt.Printf("    %s (confidence %.2f)\n", status, d.Confidence)
		fmt.Printf("    💡 Expected: %s\n", tc.expected)
	}

	// Test 3: Approval rate over an income sweep
	fmt.Println("\n🔧 Test 3: Sweeping applicant income...")
	approvals, total := 0, 0
	for income := 500.0; income <= 20000; income += 500 {
		for _, credit := range []float64{0, 1} {
			rec := base
			rec.ApplicantIncome = income
			rec.CreditHistory = credit
			d, err := predictor.Predict(rec)
			if err != nil {
				log.Fatalf("❌ Prediction failed at income %.0f: %v", income, err)
			}
			total++
			if d.Status == ml.StatusApproved {
				approvals++
			}
		}
	}
	rate := float64(approvals) / float64(total) * 100
	fmt.Printf("  📊 Approval rate: %.1f%% (%d/%d)\n", rate, approvals, total)
	if rate > 90 || rate < 10 {
		fmt.Println("  ⚠️  Warning: approval rate is extreme, check the exported artifact")
	} else {
		fmt.Println("  ✅ Approval rate looks reasonable")
	}

	fmt.Println("\n🎉 All checks completed!")
}
