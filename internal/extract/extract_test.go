package extract

import "testing"

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPDFExtractor(0))
	r.Register(NewDOCXExtractor())
	r.Register(NewXLSXExtractor())
	r.Register(NewHTTPExtractor())

	cases := map[string]string{
		"report.pdf":          "*extract.PDFExtractor",
		"report.docx":         "*extract.DOCXExtractor",
		"report.xlsx":         "*extract.XLSXExtractor",
		"https://a.test/page": "*extract.HTTPExtractor",
	}

	for ref, wantType := range cases {
		e, ok := r.For(ref)
		if !ok {
			t.Fatalf("no extractor matched %q", ref)
		}
		if got := typeName(e); got != wantType {
			t.Errorf("%q: want %s, got %s", ref, wantType, got)
		}
	}
}

func typeName(e ContentExtractor) string {
	switch e.(type) {
	case *PDFExtractor:
		return "*extract.PDFExtractor"
	case *DOCXExtractor:
		return "*extract.DOCXExtractor"
	case *XLSXExtractor:
		return "*extract.XLSXExtractor"
	case *HTTPExtractor:
		return "*extract.HTTPExtractor"
	default:
		return "unknown"
	}
}

func TestRegistryNoMatchReturnsFalse(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPDFExtractor(0))
	if _, ok := r.For("not-a-known-extension.zzz"); ok {
		t.Fatalf("expected no extractor to match an unknown extension")
	}
}
