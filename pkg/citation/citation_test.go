package citation

import "testing"

func TestCitationKey(t *testing.T) {
	kb := KBCitation{FileName: "年报.pdf", Page: 3, ChunkText: "营收数据"}
	if kb.Key() != "kb|年报.pdf|3" {
		t.Errorf("KBCitation.Key() = %v", kb.Key())
	}

	web := WebCitation{Title: "官网", URL: "https://example.com"}
	if web.Key() != "web|官网|https://example.com" {
		t.Errorf("WebCitation.Key() = %v", web.Key())
	}

	// 同一单元格不同快照值，身份键必须一致
	a := ExcelCitation{FileName: "财务.xlsx", Sheet: "Q1", Row: 2, Col: 5, Value: "100"}
	b := ExcelCitation{FileName: "财务.xlsx", Sheet: "Q1", Row: 2, Col: 5, Value: "200"}
	if a.Key() != b.Key() {
		t.Errorf("ExcelCitation keys differ: %v vs %v", a.Key(), b.Key())
	}
}

func TestSetFirstSeenWins(t *testing.T) {
	s := NewSet()
	first := WebCitation{Title: "t", URL: "u", Snippet: "first"}
	second := WebCitation{Title: "t", URL: "u", Snippet: "second"}

	if !s.Add(first) {
		t.Error("Add(first) = false, want true")
	}
	if s.Add(second) {
		t.Error("Add(second) = true, want false (duplicate key)")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %v, want 1", s.Len())
	}
}

func TestSetSeededWithExisting(t *testing.T) {
	existing := KBCitation{FileName: "doc.pdf", Page: 1}
	s := NewSet(existing)

	if s.Add(KBCitation{FileName: "doc.pdf", Page: 1, ChunkText: "other"}) {
		t.Error("Add() = true for key already present at construction")
	}
	if !s.Add(KBCitation{FileName: "doc.pdf", Page: 2}) {
		t.Error("Add() = false for new key")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	orig := ExcelCitation{FileName: "f.xlsx", Sheet: "s", Row: 1, Col: 2, Value: "42"}
	kind, payload, err := Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if kind != "excel" {
		t.Errorf("Marshal() kind = %v, want excel", kind)
	}

	got, err := Unmarshal(kind, payload)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Key() != orig.Key() {
		t.Errorf("Unmarshal() key = %v, want %v", got.Key(), orig.Key())
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	if _, err := Unmarshal("rss", []byte("{}")); err == nil {
		t.Error("Unmarshal() error = nil, want error for unknown kind")
	}
}
