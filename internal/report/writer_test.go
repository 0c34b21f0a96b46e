package report

import (
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jobtrees/canonical-checker/internal/checker"
)

func TestSheetLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		index    int
		url      string
		expected string
	}{
		{"page sitemap", 1, "https://www.jobtrees.com/sitemap_page.xml", "1_page"},
		{"nested index", 8, "https://www.jobtrees.com/api/sitemap_pSEO/sitemap_index_pSEO.xml", "8_index_pSEO"},
		{"browse city", 9, "https://www.jobtrees.com/api/sitemap_city/sitemap_index_browse_city.xml", "9_index_browse_city"},
		{"no prefix", 3, "https://example.com/jobs.xml", "3_jobs"},
		{"truncated", 2, "https://example.com/sitemap_abcdefghijklmnopqrstuvwxyz0123.xml", "2_abcdefghijklmnopqrstuvwxy"},
		{"invalid chars", 4, "https://example.com/a[b]?c*.xml", "4_a_b__c_"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SheetLabel(tc.index, tc.url)
			assert.Equal(t, tc.expected, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 31)
		})
	}
}

func TestWriteOneSheetPerReportWithMismatches(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	reports := []checker.SitemapReport{
		{Index: 1, RootURL: "https://s.test/sitemap_page.xml", Mismatches: []checker.MismatchRecord{
			{SourceURL: "https://s.test/a", CanonicalURL: "https://s.test/a-canonical", StatusCode: 200},
			{SourceURL: "https://s.test/b", CanonicalURL: "https://s.test/b2", StatusCode: 200},
		}},
		{Index: 2, RootURL: "https://s.test/sitemap_role.xml"},
		{Index: 3, RootURL: "https://s.test/sitemap_tree.xml", Label: "3_tree", Mismatches: []checker.MismatchRecord{
			{SourceURL: "https://s.test/t", CanonicalURL: "https://s.test/t2", StatusCode: 200},
		}},
	}
	require.NoError(t, NewWriter().Write(path, reports))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{"1_page", "3_tree"}, f.GetSheetList())

	rows, err := f.GetRows("1_page")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Sitemap URL", "Canonical URL", "Status Code"},
		{"https://s.test/a", "https://s.test/a-canonical", "200"},
		{"https://s.test/b", "https://s.test/b2", "200"},
	}, rows)

	styleID, err := f.GetCellStyle("1_page", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestWriteNoDataSheet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, NewWriter().Write(path, []checker.SitemapReport{
		{Index: 1, RootURL: "https://s.test/sitemap_page.xml", Err: "boom"},
	}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{NoDataSheet}, f.GetSheetList())
	rows, err := f.GetRows(NoDataSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{Headers}, rows)
}

func TestWriteWithoutReports(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "none.xlsx")
	require.NoError(t, NewWriter().Write(path, nil))
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	assert.Equal(t, []string{NoDataSheet}, f.GetSheetList())
}
