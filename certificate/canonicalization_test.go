package certificate

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestNewXMLCanonicalizerDefaults(t *testing.T) {
	c := NewXMLCanonicalizer(nil)
	if c.method != C14N10Exclusive {
		t.Errorf("expected default method %s, got %s", C14N10Exclusive, c.method)
	}
}

func TestCanonicalizeRejectsEmptyInput(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	if _, err := c.Canonicalize(""); err == nil {
		t.Fatal("expected an error for empty XML content")
	}
}

func TestCanonicalizeRejectsMalformedXML(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	if _, err := c.Canonicalize("<unclosed>"); err == nil {
		t.Fatal("expected an error for malformed XML")
	}
}

func TestCanonicalizeSortsAttributes(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	out, err := c.Canonicalize(`<DE zId="2" Id="1" aAttr="3"></DE>`)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	result := string(out)
	if strings.Index(result, `aAttr="3"`) > strings.Index(result, `zId="2"`) {
		t.Errorf("expected attributes sorted alphabetically, got %s", result)
	}
}

func TestCanonicalizeDocumentRejectsNilRoot(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	if _, err := c.CanonicalizeDocument(nil); err == nil {
		t.Fatal("expected an error for a nil document")
	}

	empty := etree.NewDocument()
	if _, err := c.CanonicalizeDocument(empty); err == nil {
		t.Fatal("expected an error for a document with no root element")
	}
}

func TestCanonicalizeElementRejectsNil(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	if _, err := c.CanonicalizeElement(nil); err == nil {
		t.Fatal("expected an error for a nil element")
	}
}

func TestCanonicalizeElementRoundTripsSimpleDocument(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	doc := etree.NewDocument()
	if err := doc.ReadFromString(`<DE Id="123"><gOpeDE><iTiDE>1</iTiDE></gOpeDE></DE>`); err != nil {
		t.Fatalf("ReadFromString: %v", err)
	}

	out, err := c.CanonicalizeElement(doc.Root())
	if err != nil {
		t.Fatalf("CanonicalizeElement: %v", err)
	}
	if !strings.Contains(string(out), `<iTiDE>1</iTiDE>`) {
		t.Errorf("expected canonicalized output to preserve element content, got %s", out)
	}
}

func TestCanonicalizeRemovesComments(t *testing.T) {
	c := NewXMLCanonicalizer(DefaultCanonicalizationConfig())
	out, err := c.Canonicalize(`<DE><!-- a comment --><iTiDE>1</iTiDE></DE>`)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if strings.Contains(string(out), "a comment") {
		t.Errorf("expected comments stripped from canonicalized output, got %s", out)
	}
}
