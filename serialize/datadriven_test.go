// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package serialize

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/kr/pretty"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

// TestWireCodecDataDriven scripts Writer/Reader round trips: each
// write-read block's input lines are "<kind> <value>" pairs (int, long,
// varint, string, binary), written in order with a CopyWriter and read
// back in the same order with a Reader. A mismatch between what was
// written and what came back fails the test directly; the golden output
// just confirms the script ran clean.
func TestWireCodecDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/wire_codec", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "write-read":
			runWriteReadScript(t, td.Input)
			return "ok\n"
		default:
			t.Fatalf("unknown command %q", td.Cmd)
			return ""
		}
	})
}

type scriptField struct {
	kind string
	raw  string
}

func parseScript(t *testing.T, input string) []scriptField {
	t.Helper()
	var fields []scriptField
	for _, line := range strings.Split(strings.TrimSpace(input), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		require.Len(t, parts, 2, "malformed script line %q", line)
		fields = append(fields, scriptField{kind: parts[0], raw: parts[1]})
	}
	return fields
}

func runWriteReadScript(t *testing.T, input string) {
	t.Helper()
	fields := parseScript(t, input)

	w := NewCopyWriter(64)
	for _, f := range fields {
		switch f.kind {
		case "int":
			n, err := strconv.ParseInt(f.raw, 10, 32)
			require.NoError(t, err)
			require.NoError(t, w.WriteInt(int32(n)))
		case "long":
			n, err := strconv.ParseInt(f.raw, 10, 64)
			require.NoError(t, err)
			require.NoError(t, w.WriteLong(n))
		case "varint":
			n, err := strconv.ParseInt(f.raw, 10, 64)
			require.NoError(t, err)
			require.NoError(t, w.WriteVarInt(n))
		case "string":
			require.NoError(t, w.WriteTextString(f.raw, false))
		case "binary":
			b, err := hex.DecodeString(f.raw)
			require.NoError(t, err)
			require.NoError(t, w.WriteBinaryString(b, false))
		default:
			t.Fatalf("unknown field kind %q", f.kind)
		}
	}

	r := NewReader(w.Bytes())
	for _, f := range fields {
		switch f.kind {
		case "int":
			want, _ := strconv.ParseInt(f.raw, 10, 32)
			got, err := r.ReadInt()
			require.NoError(t, err)
			require.EqualValues(t, want, got)
		case "long":
			want, _ := strconv.ParseInt(f.raw, 10, 64)
			got, err := r.ReadLong()
			require.NoError(t, err)
			require.Equal(t, want, got)
		case "varint":
			want, _ := strconv.ParseInt(f.raw, 10, 64)
			got, err := r.ReadVarInt()
			require.NoError(t, err)
			require.Equal(t, want, got)
		case "string":
			got, isNull, err := r.ReadTextString()
			require.NoError(t, err)
			require.False(t, isNull)
			require.Equal(t, f.raw, got)
		case "binary":
			want, err := hex.DecodeString(f.raw)
			require.NoError(t, err)
			got, isNull, err := r.ReadBinaryString()
			require.NoError(t, err)
			require.False(t, isNull)
			require.Equal(t, want, got)
		}
	}
	require.Zero(t, r.Remaining(), "script left unread bytes behind")
}

// dumpDiff returns a unified diff between want and got, annotated with a
// pretty-printed line-count summary, or the empty string when the two
// dumps are identical. Intended for tests comparing large table or ring
// dumps where a plain require.Equal failure message is unreadable.
func dumpDiff(want, got string) string {
	if want == got {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("diff failed: %v", err)
	}
	summary := struct{ WantLines, GotLines int }{len(diff.A), len(diff.B)}
	return fmt.Sprintf("%s\n%# v\n", text, pretty.Formatter(summary))
}

func TestDumpDiffHelper(t *testing.T) {
	same := "alpha\nbeta\ngamma\n"
	require.Empty(t, dumpDiff(same, same))

	want := "alpha\nbeta\ngamma\n"
	got := "alpha\nBETA\ngamma\n"
	diff := dumpDiff(want, got)
	require.NotEmpty(t, diff)
	require.Contains(t, diff, "BETA")
	require.Contains(t, diff, "WantLines")
}
