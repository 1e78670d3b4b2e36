package model

import "testing"

func TestValidateTestCaseRequiresId(t *testing.T) {
	errs := ValidateTestCase(TestCase{Name: "x", Request: Request{Path: "/a"}})
	if !HasErrors(errs) {
		t.Fatalf("expected error for missing TestCaseId")
	}
}

func TestValidateTestCaseSelfPrereqIsWarningOnly(t *testing.T) {
	tc := TestCase{TestCaseId: "a", Name: "a", Request: Request{Path: "/a"}, Prerequisites: []string{"a"}}
	errs := ValidateTestCase(tc)
	if HasErrors(errs) {
		t.Fatalf("self-prerequisite should be a warning, not an error")
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(errs))
	}
}

func TestValidateSuiteDetectsDuplicateIds(t *testing.T) {
	cases := []TestCase{
		{TestCaseId: "a", Name: "a", Request: Request{Path: "/a"}},
		{TestCaseId: "a", Name: "b", Request: Request{Path: "/b"}},
	}
	errs := ValidateSuite(cases)
	if !HasErrors(errs) {
		t.Fatalf("expected duplicate-id error")
	}
}

func TestValidateSuiteDetectsUnknownPrerequisite(t *testing.T) {
	cases := []TestCase{
		{TestCaseId: "a", Name: "a", Request: Request{Path: "/a"}, Prerequisites: []string{"ghost"}},
	}
	errs := ValidateSuite(cases)
	if HasErrors(errs) {
		t.Fatalf("unknown prerequisite should be a warning")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one warning, got %d: %+v", len(errs), errs)
	}
}

func TestValidateSuiteEmptyIsValid(t *testing.T) {
	if errs := ValidateSuite(nil); HasErrors(errs) {
		t.Fatalf("empty suite should have no errors")
	}
}
