package model

import "fmt"

// Severity classifies a ValidationError. Warnings are collected but do not
// make a test suite invalid; errors do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one finding from validating a TestCase or a suite.
// Validation never stops at the first problem — every case is checked and
// every finding collected, then reported together.
type ValidationError struct {
	TestCaseId string
	Field      string
	Message    string
	Severity   Severity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.TestCaseId, e.Field, e.Message)
}

// ValidateTestCase checks one TestCase's structural invariants in
// isolation (it cannot check prerequisite references against the rest of
// a suite; use ValidateSuite for that).
func ValidateTestCase(tc TestCase) []ValidationError {
	var errs []ValidationError
	if tc.TestCaseId == "" {
		errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "testCaseId", Message: "must not be empty", Severity: SeverityError})
	}
	if tc.Name == "" {
		errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "testCaseName", Message: "must not be empty", Severity: SeverityError})
	}
	if tc.Request.Path == "" {
		errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "request.path", Message: "must not be empty", Severity: SeverityError})
	}
	for _, p := range tc.Prerequisites {
		if p == tc.TestCaseId {
			errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "prerequisites", Message: "self-reference will be dropped at scheduling time", Severity: SeverityWarning})
		}
	}
	return errs
}

// ValidateSuite checks a whole set of test cases: per-case structural
// validity, TestCaseId uniqueness, and that every prerequisite reference
// resolves to an ID present in the same suite.
func ValidateSuite(cases []TestCase) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(cases))
	ids := make(map[string]bool, len(cases))
	for _, tc := range cases {
		ids[tc.TestCaseId] = true
	}
	for _, tc := range cases {
		errs = append(errs, ValidateTestCase(tc)...)
		if tc.TestCaseId != "" {
			if seen[tc.TestCaseId] {
				errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "testCaseId", Message: "duplicate within run", Severity: SeverityError})
			}
			seen[tc.TestCaseId] = true
		}
		for _, p := range tc.Prerequisites {
			if p != tc.TestCaseId && !ids[p] {
				errs = append(errs, ValidationError{TestCaseId: tc.TestCaseId, Field: "prerequisites", Message: fmt.Sprintf("unknown prerequisite %q will be dropped", p), Severity: SeverityWarning})
			}
		}
	}
	return errs
}

// HasErrors reports whether any finding in errs is SeverityError (as
// opposed to a warning).
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}
