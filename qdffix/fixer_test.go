package qdffix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runFixer(t *testing.T, input string) string {
	t.Helper()
	var out strings.Builder
	f := NewFixer("test.qdf")
	require.NoError(t, f.Fix(strings.NewReader(input), &out))
	return out.String()
}

func TestFixerRecomputesStreamLength(t *testing.T) {
	input := "" +
		"%PDF-1.7\n" +
		"1 0 obj\n" +
		"<<\n" +
		"  /Type /Catalog\n" +
		"  /Pages 2 0 R\n" +
		">>\n" +
		"endobj\n" +
		"2 0 obj\n" +
		"<<\n" +
		"  /Type /Pages\n" +
		"  /Kids [ 3 0 R ]\n" +
		"  /Count 1\n" +
		">>\n" +
		"endobj\n" +
		"3 0 obj\n" +
		"<<\n" +
		"  /Type /Page\n" +
		"  /Parent 2 0 R\n" +
		"  /Contents 4 0 R\n" +
		">>\n" +
		"endobj\n" +
		"4 0 obj\n" +
		"<<\n" +
		"  /Length 5 0 R\n" +
		">>\n" +
		"stream\n" +
		"hello world\n" +
		"endstream\n" +
		"endobj\n" +
		"5 0 obj\n" +
		"999\n" +
		"endobj\n" +
		"xref\n" +
		"0 6\n" +
		"0000000000 65535 f \n" +
		"trailer <<\n" +
		"  /Size 6\n" +
		"  /Root 1 0 R\n" +
		">>\n" +
		"startxref\n" +
		"0\n" +
		"%%EOF\n"

	out := runFixer(t, input)

	require.Contains(t, out, "/Length 5 0 R")
	idx := strings.Index(out, "5 0 obj\n")
	require.GreaterOrEqual(t, idx, 0)
	rest := out[idx+len("5 0 obj\n"):]
	require.True(t, strings.HasPrefix(rest, "12\nendobj\n"), "expected recomputed length 12, got: %q", rest[:20])

	require.Contains(t, out, "xref\n0 6\n")
	require.Contains(t, out, "0000000000 65535 f \n")
	require.Contains(t, out, "/Size 6\n")
	require.Contains(t, out, "startxref\n")
	require.True(t, strings.HasSuffix(out, "%%EOF\n"))
}

func TestFixerRejectsOutOfOrderObject(t *testing.T) {
	input := "1 0 obj\n<< >>\nendobj\n3 0 obj\n<< >>\nendobj\n"
	var out strings.Builder
	f := NewFixer("bad.qdf")
	err := f.Fix(strings.NewReader(input), &out)
	require.Error(t, err)
}

func TestFixerIgnoreNewlineMarkerTrimsOneByte(t *testing.T) {
	input := "" +
		"1 0 obj\n" +
		"<<\n" +
		"  /Length 2 0 R\n" +
		">>\n" +
		"stream\n" +
		"abc\n" +
		"endstream\n" +
		"%QDF: ignore_newline\n" +
		"2 0 obj\n" +
		"999\n" +
		"endobj\n"

	out := runFixer(t, input)
	idx := strings.Index(out, "2 0 obj\n")
	require.GreaterOrEqual(t, idx, 0)
	rest := out[idx+len("2 0 obj\n"):]
	require.True(t, strings.HasPrefix(rest, "3\n"), "expected length 3 (4 minus the ignored trailing newline), got: %q", rest[:10])
}

func TestFixerObjectStreamRenumbersOffsetsAndRewritesXrefEntries(t *testing.T) {
	input := "" +
		"1 0 obj\n" +
		"<<\n" +
		"  /Type /ObjStm\n" +
		"  /N 2\n" +
		"  /First 999\n" +
		">>\n" +
		"stream\n" +
		"%% Object stream: object 2, index 0\n" +
		"2 0 obj\n" +
		"<< /A 1 >>\n" +
		"endobj\n" +
		"%% Object stream: object 3, index 1\n" +
		"3 0 obj\n" +
		"<< /B 2 >>\n" +
		"endobj\n" +
		"endstream\n" +
		"endobj\n"

	out := runFixer(t, input)
	require.Contains(t, out, "/N 2\n")
	require.Contains(t, out, "/First ")
	require.Contains(t, out, "2 0\n")
	require.Contains(t, out, "<< /A 1 >>\n")
	require.Contains(t, out, "<< /B 2 >>\n")
}
