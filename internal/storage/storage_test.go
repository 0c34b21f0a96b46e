package storage

import "testing"

func TestObjectKey(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		prefix, path, expected string
	}{
		{"cannonical/", "canonical_mismatches.xlsx", "cannonical/canonical_mismatches.xlsx"},
		{"cannonical", "out/canonical_mismatches.xlsx", "cannonical/canonical_mismatches.xlsx"},
		{"/reports/seo/", "/tmp/run/report.xlsx", "reports/seo/report.xlsx"},
		{"", "report.xlsx", "report.xlsx"},
	}
	for _, tc := range testCases {
		if got := ObjectKey(tc.prefix, tc.path); got != tc.expected {
			t.Errorf("ObjectKey(%q, %q) = %q; want %q", tc.prefix, tc.path, got, tc.expected)
		}
	}
}
