package domain

// Header names of the beneficiary register, in their canonical (NFC) spelling.
const (
	ColumnTicketCode = "Ticket Code"
	ColumnJeton      = "Jeton Distribué"
	ColumnNFI        = "NFI"
	ColumnOutils     = "Outils"
	ColumnSemence    = "Semence"
	ColumnPartenaire = "Parténaire"
	ColumnCarte      = "Carte"
	ColumnAge        = "Age"
)

// Served is the literal flag value recording that a milestone was distributed.
// Any other value, including the empty string, means "not yet".
const Served = "Oui"

// Milestone is one of the four independent distribution steps tracked per beneficiary.
type Milestone int

const (
	MilestoneJeton Milestone = iota
	MilestoneNFI
	MilestoneOutils
	MilestoneSemence
)

// Milestones lists every milestone in register order.
var Milestones = [...]Milestone{MilestoneJeton, MilestoneNFI, MilestoneOutils, MilestoneSemence}

// Column returns the canonical header name holding the milestone flag.
func (m Milestone) Column() string {
	switch m {
	case MilestoneJeton:
		return ColumnJeton
	case MilestoneNFI:
		return ColumnNFI
	case MilestoneOutils:
		return ColumnOutils
	case MilestoneSemence:
		return ColumnSemence
	default:
		return ""
	}
}

// InfoType tags the single descriptive field disclosed by a ticket check.
type InfoType string

const (
	InfoTypePartenaire InfoType = "Parténaire"
	InfoTypeCarte      InfoType = "Carte"
	InfoTypeAge        InfoType = "Age"
)

// Disclosure is the descriptive value returned for an existing ticket.
type Disclosure struct {
	Info string
	Type InfoType
}

// Layout maps canonical column names to the header spelling found in a store.
// Reads and writes go through the stored spelling so the header is written back verbatim.
type Layout struct {
	byCanonical map[string]string
}

// ResolveLayout indexes a header row. When two headers normalize to the same name,
// the first one wins, matching first-match semantics elsewhere.
func ResolveLayout(columns []string) Layout {
	l := Layout{byCanonical: make(map[string]string, len(columns))}
	for _, c := range columns {
		key := NormalizeColumnName(c)
		if _, ok := l.byCanonical[key]; ok {
			continue
		}
		l.byCanonical[key] = c
	}
	return l
}

// Column returns the stored header name for a canonical column.
func (l Layout) Column(canonical string) (string, bool) {
	c, ok := l.byCanonical[NormalizeColumnName(canonical)]
	return c, ok
}

// Missing returns the canonical names, in argument order, that the layout cannot resolve.
func (l Layout) Missing(canonical ...string) []string {
	var out []string
	for _, c := range canonical {
		if _, ok := l.Column(c); !ok {
			out = append(out, c)
		}
	}
	return out
}

// Field returns the value of a canonical column in rec, and whether the column exists.
func (l Layout) Field(rec map[string]string, canonical string) (string, bool) {
	col, ok := l.Column(canonical)
	if !ok {
		return "", false
	}
	v, ok := rec[col]
	return v, ok
}

// FullyServed reports whether every milestone flag in rec equals Served.
// A fully served beneficiary is terminal: no further update is accepted.
func (l Layout) FullyServed(rec map[string]string) bool {
	for _, m := range Milestones {
		if v, _ := l.Field(rec, m.Column()); v != Served {
			return false
		}
	}
	return true
}

// Disclose picks the one descriptive field to reveal for rec.
// Priority is Parténaire, then Carte, then Age; Age is returned even when blank.
func (l Layout) Disclose(rec map[string]string) Disclosure {
	if v, ok := l.Field(rec, ColumnPartenaire); ok && !IsBlank(v) {
		return Disclosure{Info: v, Type: InfoTypePartenaire}
	}
	if v, ok := l.Field(rec, ColumnCarte); ok && !IsBlank(v) {
		return Disclosure{Info: v, Type: InfoTypeCarte}
	}
	v, _ := l.Field(rec, ColumnAge)
	return Disclosure{Info: v, Type: InfoTypeAge}
}
