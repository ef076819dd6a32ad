// Package mapper implements SET's bidirectional schema mapping (spec §4.4):
// a declarative table of {source path, target path, transform, options}
// rules that translates between the client's modular XML shape and SET's
// official wire shape, in either direction, without hand-written per-field
// conversion code. Rules are data, not code — the same "registry keyed by
// path strings" idiom as the teacher's converter.LayoutConfig.Structure
// (a map[string]string driving TXT-to-XML field placement), generalized
// here from a flat string map to a typed rule list because the mapper also
// needs transform kinds and bidirectionality the teacher's layout map never
// had to express. DOM traversal uses github.com/beevik/etree, the same
// library certificate and validation use for XML manipulation — the
// teacher's own converter package works against bufio/strings instead, but
// etree's path-based element lookup is what the spec's "source_path" /
// "target_path" addressing actually needs.
package mapper

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/gaxoblanco/sifen-go/errors"
)

// TransformKind names how a rule's value is derived.
type TransformKind string

const (
	// TransformCopy copies the source element's text verbatim.
	TransformCopy TransformKind = "copy"
	// TransformConst ignores the source value (if any) and always writes a
	// fixed value from Options["value"].
	TransformConst TransformKind = "const"
	// TransformDateFormat reparses the source text with Options["from"] and
	// rewrites it with Options["to"] (both Go reference-time layouts).
	TransformDateFormat TransformKind = "date_format"
)

// Rule is one declarative mapping entry (spec §4.4).
type Rule struct {
	SourcePath string
	TargetPath string
	Transform  TransformKind
	Options    map[string]string
}

// RuleSet is the full mapping table for one document shape, plus the strict
// flag that decides what happens to elements no rule covers.
//
// Idempotence (spec §4.4, official(modular(official(D))) == official(D)
// after canonicalization) holds exactly when every leaf of D is covered by
// an explicit rule: the round trip then writes each value back to its
// original path. Leaves left to passthrough round-trip their values too,
// but sibling order among passed-through elements follows traversal order
// rather than the original document's, so a RuleSet with uncovered leaves
// only guarantees value-equality, not byte-for-byte equality, after a
// round trip.
type RuleSet struct {
	Rules []Rule
	// Strict rejects any source element that isn't a rule's source or
	// target path. Non-strict passes such elements through unchanged at
	// their original path (spec §4.4).
	Strict bool
}

// inverse swaps source/target on every rule, producing the RuleSet that
// maps the other direction. copy and const are self-inverse; date_format
// swaps its from/to options.
func (rs RuleSet) inverse() RuleSet {
	inv := RuleSet{Strict: rs.Strict, Rules: make([]Rule, len(rs.Rules))}
	for i, r := range rs.Rules {
		ir := Rule{SourcePath: r.TargetPath, TargetPath: r.SourcePath, Transform: r.Transform}
		if r.Transform == TransformDateFormat {
			ir.Options = map[string]string{"from": r.Options["to"], "to": r.Options["from"]}
		} else {
			ir.Options = r.Options
		}
		inv.Rules[i] = ir
	}
	return inv
}

// ModularToOfficial converts the client's internal modular XML into SET's
// official wire shape.
func ModularToOfficial(modularXML []byte, rules RuleSet) ([]byte, error) {
	return apply(modularXML, rules)
}

// OfficialToModular converts a SET official XML document back into the
// client's modular shape, using the same RuleSet ModularToOfficial was
// given (inverted automatically).
func OfficialToModular(officialXML []byte, rules RuleSet) ([]byte, error) {
	return apply(officialXML, rules.inverse())
}

func apply(input []byte, rules RuleSet) ([]byte, error) {
	src := etree.NewDocument()
	if err := src.ReadFromBytes(input); err != nil {
		return nil, errors.NewXMLError("mapper input is not well-formed XML", "", err)
	}
	if src.Root() == nil {
		return nil, errors.NewXMLError("mapper input has no root element", "", nil)
	}

	dst := etree.NewDocument()
	dst.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	consumedSource := map[string]bool{}

	for _, rule := range rules.Rules {
		srcEl := src.FindElement(rule.SourcePath)
		var value string
		if srcEl != nil {
			value = srcEl.Text()
			consumedSource[canonicalPath(rule.SourcePath)] = true
		} else if rule.Transform != TransformConst {
			continue // nothing to map for this rule in this document
		}

		out, err := transformValue(rule.Transform, value, rule.Options)
		if err != nil {
			return nil, err
		}

		target := ensurePath(dst, rule.TargetPath)
		target.SetText(out)
	}

	if err := passthrough(src, dst, consumedSource, rules.Strict); err != nil {
		return nil, err
	}

	out, err := dst.WriteToBytes()
	if err != nil {
		return nil, errors.NewXMLError("failed to serialize mapped XML", "", err)
	}
	return out, nil
}

func transformValue(kind TransformKind, value string, options map[string]string) (string, error) {
	switch kind {
	case TransformCopy, "":
		return value, nil
	case TransformConst:
		return options["value"], nil
	case TransformDateFormat:
		from, to := options["from"], options["to"]
		if from == "" || to == "" {
			return "", errors.NewValidationError("date_format transform requires both from and to layouts", "options", options)
		}
		t, err := time.Parse(from, value)
		if err != nil {
			return "", errors.NewXMLError(fmt.Sprintf("value %q does not match layout %q", value, from), "", err)
		}
		return t.Format(to), nil
	default:
		return "", errors.NewValidationError("unknown transform kind", "transform", string(kind))
	}
}

// ensurePath walks dst from its (possibly absent) root, creating any
// missing element along path's segments, and returns the final element.
// path uses etree's simplified XPath syntax ("./a/b/c"); only plain child
// segments are supported for creation (attribute predicates can still be
// used for lookup on pre-existing documents, just not auto-created).
func ensurePath(doc *etree.Document, path string) *etree.Element {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	root := doc.Root()
	if root == nil || root.Tag != segments[0] {
		root = doc.CreateElement(segments[0])
	}

	cursor := root
	for _, seg := range segments[1:] {
		child := cursor.SelectElement(seg)
		if child == nil {
			child = cursor.CreateElement(seg)
		}
		cursor = child
	}

	return cursor
}

// splitPath strips etree's leading "./" or "/" and returns plain tag
// segments, ignoring any attribute predicate ("[@attr='v']") since creation
// only needs the tag name.
func splitPath(path string) []string {
	p := strings.TrimPrefix(path, "./")
	p = strings.TrimPrefix(p, "/")
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s == "" {
			continue
		}
		if idx := strings.Index(s, "["); idx >= 0 {
			s = s[:idx]
		}
		segs = append(segs, s)
	}
	return segs
}

// canonicalPath normalizes a rule path (which may start with "./" or "/")
// to the plain "/a/b/c" form passthrough's walk uses for comparison.
func canonicalPath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

// passthrough copies every source leaf element whose full path wasn't
// already consumed by a rule into dst at the identical path, unless Strict
// is set, in which case an unmapped element is a validation error.
func passthrough(src, dst *etree.Document, consumedSource map[string]bool, strict bool) error {
	var unmapped []string

	var walk func(el *etree.Element, path string)
	walk = func(el *etree.Element, path string) {
		current := path + "/" + el.Tag
		children := el.ChildElements()
		if len(children) == 0 {
			if !consumedSource[current] {
				if strict {
					unmapped = append(unmapped, current)
				} else {
					target := ensurePath(dst, "."+current)
					target.SetText(el.Text())
				}
			}
			return
		}
		for _, child := range children {
			walk(child, current)
		}
	}

	walk(src.Root(), "")

	if strict && len(unmapped) > 0 {
		sort.Strings(unmapped)
		return errors.NewValidationError(
			fmt.Sprintf("strict mapping found %d element(s) with no rule: %s", len(unmapped), strings.Join(unmapped, ", ")),
			"unmapped_elements", unmapped,
		)
	}
	return nil
}
