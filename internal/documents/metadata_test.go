package documents

import (
	"errors"
	"reflect"
	"testing"
)

func TestCountLines(t *testing.T) {
	tests := map[string]int{"": 1, "a": 1, "a\nb": 2, "a\nb\n": 3}
	for in, want := range tests {
		if got := CountLines(in); got != want {
			t.Errorf("CountLines(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestGeneratedMetadata(t *testing.T) {
	meta := GeneratedMetadata("business-case", "# BC\nline two\nline three", "describe", map[string]any{"content": "x"}, StepPlanning)

	if meta["extraction_status"] != ExtractionAutoAssigned || meta["primary_type"] != "business-case" {
		t.Fatalf("meta = %v", meta)
	}
	if meta["total_lines"] != 3 || meta["step"] != "planning" || meta["message"] != "describe" {
		t.Fatalf("meta = %v", meta)
	}
	types := meta["document_types"].(map[string]any)
	if len(types) != len(AllTypes) {
		t.Fatalf("document_types has %d entries, want %d", len(types), len(AllTypes))
	}
	if got := types["business-case"]; !reflect.DeepEqual(got, map[string]any{"line_start": 1, "line_end": 3}) {
		t.Errorf("primary range = %v", got)
	}
	if got := types["srs"]; !reflect.DeepEqual(got, map[string]any{"line_start": -1, "line_end": -1}) {
		t.Errorf("other range = %v", got)
	}
	if got := DetectedTypes(meta); !reflect.DeepEqual(got, []string{"business-case"}) {
		t.Errorf("DetectedTypes() = %v", got)
	}
}

func TestGeneratedMetadataOmitsEmptyOptionals(t *testing.T) {
	meta := GeneratedMetadata("srs", "x", "", nil, "")
	for _, key := range []string{"message", "ai_response", "step"} {
		if _, ok := meta[key]; ok {
			t.Errorf("unexpected key %q", key)
		}
	}
}

func TestUploadMetadata(t *testing.T) {
	raw := map[string]any{
		"response": []any{
			map[string]any{"type": "srs", "line_start": 1.0, "line_end": 20.0},
			map[string]any{"type": "risk-register", "line_start": 21.0},
			map[string]any{"line_start": 5.0},
			"garbage",
		},
	}
	meta := UploadMetadata(raw, "a\nb", "requirements.pdf")

	if meta["extraction_status"] != ExtractionSuccess || meta["source_file"] != "requirements.pdf" || meta["total_lines"] != 2 {
		t.Fatalf("meta = %v", meta)
	}
	want := map[string]any{
		"srs":           map[string]any{"line_start": 1, "line_end": 20},
		"risk-register": map[string]any{"line_start": 21, "line_end": -1},
	}
	if !reflect.DeepEqual(meta["document_types"], want) {
		t.Errorf("document_types = %v, want %v", meta["document_types"], want)
	}
	if got := DetectedTypes(meta); !reflect.DeepEqual(got, []string{"risk-register", "srs"}) {
		t.Errorf("DetectedTypes() = %v", got)
	}
}

func TestFailedAndMergeMetadata(t *testing.T) {
	failed := FailedMetadata(errors.New("boom"))
	if failed["extraction_status"] != ExtractionFailed || failed["error"] != "boom" {
		t.Fatalf("FailedMetadata() = %v", failed)
	}

	merged := MergeMetadata(
		map[string]any{"source_file": "a.pdf", "extraction_status": ExtractionPending},
		map[string]any{"document_types": map[string]any{}},
	)
	if merged["source_file"] != "a.pdf" || merged["extraction_status"] != "updated" {
		t.Fatalf("MergeMetadata() = %v", merged)
	}
}
