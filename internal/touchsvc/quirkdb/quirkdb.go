// Package quirkdb carries per-device attach quirks. The database is an
// embedded markdown table (QUIRKS.md) keyed by vendor:product, parsed
// once at init. Config entries can layer additional quirks on top of
// the database via Merge.
package quirkdb

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

//go:embed QUIRKS.md
var quirksMD []byte

type Flag uint8

const (
	FlagSkipCert Flag = 1 << iota
	FlagSkipInputMode
	FlagForceTouchPad
	FlagForceTouchScreen
)

// Quirks is a set of attach-time overrides for a device. The zero value
// means no quirks.
type Quirks struct {
	Flags       Flag
	MaxContacts int
}

func (q Quirks) Has(f Flag) bool {
	return q.Flags&f != 0
}

func (q Quirks) IsZero() bool {
	return q.Flags == 0 && q.MaxContacts == 0
}

// Merge layers other on top of q. Flags accumulate, a non-zero contact
// cap in other wins.
func (q Quirks) Merge(other Quirks) Quirks {
	q.Flags |= other.Flags
	if other.MaxContacts > 0 {
		q.MaxContacts = other.MaxContacts
	}
	return q
}

func (q Quirks) String() string {
	var parts []string
	if q.Has(FlagSkipCert) {
		parts = append(parts, "skip-cert")
	}
	if q.Has(FlagSkipInputMode) {
		parts = append(parts, "skip-input-mode")
	}
	if q.Has(FlagForceTouchPad) {
		parts = append(parts, "force-touchpad")
	}
	if q.Has(FlagForceTouchScreen) {
		parts = append(parts, "force-touchscreen")
	}
	if q.MaxContacts > 0 {
		parts = append(parts, fmt.Sprintf("max-contacts=%d", q.MaxContacts))
	}
	return strings.Join(parts, ", ")
}

func (q Quirks) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

func (q *Quirks) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Parse parses a comma-separated quirk list, e.g.
// "skip-cert, max-contacts=10". An empty string yields zero quirks.
func Parse(s string) (Quirks, error) {
	var q Quirks
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if val, ok := strings.CutPrefix(part, "max-contacts="); ok {
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return Quirks{}, fmt.Errorf("invalid max-contacts value %q", val)
			}
			q.MaxContacts = n
			continue
		}
		switch part {
		case "skip-cert":
			q.Flags |= FlagSkipCert
		case "skip-input-mode":
			q.Flags |= FlagSkipInputMode
		case "force-touchpad":
			q.Flags |= FlagForceTouchPad
		case "force-touchscreen":
			q.Flags |= FlagForceTouchScreen
		default:
			return Quirks{}, fmt.Errorf("unknown quirk %q", part)
		}
	}
	if q.Has(FlagForceTouchPad) && q.Has(FlagForceTouchScreen) {
		return Quirks{}, fmt.Errorf("conflicting quirks force-touchpad and force-touchscreen")
	}
	return q, nil
}

type Entry struct {
	VendorID  uint16
	ProductID uint16
	Product   string
	Quirks    Quirks
}

var (
	revision int
	entries  = map[uint32]Entry{}
)

func init() {
	parsed, rev, err := parseTable(quirksMD)
	if err != nil {
		panic(fmt.Errorf("quirkdb: embedded QUIRKS.md: %w", err))
	}
	revision = rev
	for _, e := range parsed {
		entries[deviceKey(e.VendorID, e.ProductID)] = e
	}
}

// Revision reports the database revision from the QUIRKS.md frontmatter.
func Revision() int {
	return revision
}

// Lookup returns the quirks recorded for a vendor:product pair.
func Lookup(vendor, product uint16) (Quirks, bool) {
	e, ok := entries[deviceKey(vendor, product)]
	return e.Quirks, ok
}

// All returns every database entry ordered by vendor:product.
func All() []Entry {
	all := make([]Entry, 0, len(entries))
	for _, e := range entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return deviceKey(all[i].VendorID, all[i].ProductID) < deviceKey(all[j].VendorID, all[j].ProductID)
	})
	return all
}

func deviceKey(vendor, product uint16) uint32 {
	return uint32(vendor)<<16 | uint32(product)
}

func parseTable(src []byte) ([]Entry, int, error) {
	md := goldmark.New(goldmark.WithExtensions(
		extension.Table,
		meta.Meta,
	))
	ctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(src), parser.WithContext(ctx))

	rev := 0
	if v, ok := meta.Get(ctx)["revision"].(int); ok {
		rev = v
	}

	var parsed []Entry
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		row, ok := n.(*extast.TableRow)
		if !ok {
			return ast.WalkContinue, nil
		}
		var cells []string
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, strings.TrimSpace(string(c.Text(src))))
		}
		if len(cells) != 3 {
			return ast.WalkStop, fmt.Errorf("row %v: expected 3 columns, got %d", cells, len(cells))
		}
		var vendor, product uint16
		if _, err := fmt.Sscanf(cells[0], "%04x:%04x", &vendor, &product); err != nil {
			return ast.WalkStop, fmt.Errorf("row %v: invalid device id %q: %w", cells, cells[0], err)
		}
		quirks, err := Parse(cells[2])
		if err != nil {
			return ast.WalkStop, fmt.Errorf("row %v: %w", cells, err)
		}
		if quirks.IsZero() {
			return ast.WalkStop, fmt.Errorf("row %v: no quirks listed", cells)
		}
		parsed = append(parsed, Entry{
			VendorID:  vendor,
			ProductID: product,
			Product:   cells[1],
			Quirks:    quirks,
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return parsed, rev, nil
}
