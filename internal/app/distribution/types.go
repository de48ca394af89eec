package distribution

import "github.com/aid-distribution/ticket-api/internal/domain"

// Optional is a two-state field used to distinguish an omitted value from a supplied one.
type Optional[T any] struct {
	specified bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) Value() T          { return o.value }

// MilestoneUpdate is a sparse update of the four milestone flags.
// Unspecified fields keep their stored value.
type MilestoneUpdate struct {
	Jeton   Optional[string]
	NFI     Optional[string]
	Outils  Optional[string]
	Semence Optional[string]
}

// For returns the update for one milestone.
func (u MilestoneUpdate) For(m domain.Milestone) Optional[string] {
	switch m {
	case domain.MilestoneJeton:
		return u.Jeton
	case domain.MilestoneNFI:
		return u.NFI
	case domain.MilestoneOutils:
		return u.Outils
	case domain.MilestoneSemence:
		return u.Semence
	default:
		return Unspecified[string]()
	}
}

// Report summarizes the register for operators.
type Report struct {
	Location         string
	Columns          []string
	Records          int
	FullyServed      int
	MissingColumns   []string
	DuplicateTickets []domain.TicketCode
}

// OK reports whether the register can serve both operations without surprises.
func (r Report) OK() bool {
	return len(r.MissingColumns) == 0 && len(r.DuplicateTickets) == 0
}
