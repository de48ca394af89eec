package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aid-distribution/ticket-api/internal/domain"
	"github.com/aid-distribution/ticket-api/internal/platform/metrics"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

// Display messages. The scan path speaks French to field staff; the check path keeps the
// English wording existing scanner apps match on.
const (
	MsgScanTicketRequired  = "Code ticket requis"
	MsgScanTicketNotFound  = "Code ticket non trouvé."
	MsgAlreadyFullyServed  = "Le bénéficiaire est déjà servi à 100%."
	MsgUpdated             = "Données mises à jour avec succès."
	MsgCheckTicketRequired = "Ticket code is required"
	MsgCheckTicketNotFound = "Ticket code not found"
)

const (
	opMarkAsServed = "mark_as_served"
	opCheckTicket  = "check_ticket"
	opValidate     = "validate"
)

var milestoneColumns = []string{domain.ColumnJeton, domain.ColumnNFI, domain.ColumnOutils, domain.ColumnSemence}

var registerColumns = []string{
	domain.ColumnTicketCode, domain.ColumnJeton, domain.ColumnNFI, domain.ColumnOutils,
	domain.ColumnSemence, domain.ColumnPartenaire, domain.ColumnCarte, domain.ColumnAge,
}

type Service struct {
	store   recordstore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu makes every load → mutate → save sequence issued through this Service one
	// critical section. Reads take it too so they never see a register mid-rewrite.
	// Writers in other processes are not covered.
	mu sync.Mutex
}

// NewService wires the service. logger and m may be nil.
func NewService(store recordstore.Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Location names the register this service operates on.
func (s *Service) Location() string { return s.store.Location() }

// MarkAsServed applies a sparse milestone update to the beneficiary holding ticket and
// persists the whole register.
//
// On success it returns the confirmation message. Every failure is a *Error whose Message
// can be shown as-is; nothing else escapes, including panics raised by a store adapter.
func (s *Service) MarkAsServed(ctx context.Context, ticket domain.TicketCode, upd MilestoneUpdate) (msg string, err error) {
	defer func() { s.metrics.Operation(opMarkAsServed, codeOf(err)) }()

	if ticket == "" {
		return "", &Error{Code: CodeMissingInput, Message: MsgScanTicketRequired}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(ctx, opMarkAsServed, ticket, &err)

	t, err := s.load(ctx)
	if err != nil {
		return "", s.storeFailure(ctx, opMarkAsServed, err)
	}
	layout := domain.ResolveLayout(t.Columns)

	idx, err := findTicket(layout, t, ticket)
	if err != nil {
		return "", err
	}
	if idx < 0 {
		return "", &Error{Code: CodeTicketNotFound, Message: MsgScanTicketNotFound}
	}
	if missing := layout.Missing(milestoneColumns...); len(missing) > 0 {
		return "", Internal(fmt.Errorf("colonne %q absente du registre", missing[0]))
	}

	rec := t.Rows[idx]
	if layout.FullyServed(rec) {
		return "", &Error{Code: CodeAlreadyFullyServed, Message: MsgAlreadyFullyServed}
	}

	changed := make([]string, 0, len(domain.Milestones))
	for _, m := range domain.Milestones {
		v := upd.For(m)
		if !v.IsSpecified() {
			continue
		}
		col, _ := layout.Column(m.Column())
		rec[col] = v.Value()
		changed = append(changed, m.Column())
	}

	// t came from Load, so a failed save leaves nothing of this mutation behind.
	if err := s.save(ctx, t); err != nil {
		return "", s.storeFailure(ctx, opMarkAsServed, err)
	}
	s.logger.InfoContext(ctx, "beneficiary updated",
		"ticket", string(ticket),
		"fields", changed,
		"fully_served", layout.FullyServed(rec),
	)
	return MsgUpdated, nil
}

// CheckTicket returns the single descriptive field disclosed for ticket.
// Failures are *Error values, using the same store taxonomy as MarkAsServed.
func (s *Service) CheckTicket(ctx context.Context, ticket domain.TicketCode) (d domain.Disclosure, err error) {
	defer func() { s.metrics.Operation(opCheckTicket, codeOf(err)) }()

	if ticket == "" {
		return domain.Disclosure{}, &Error{Code: CodeMissingInput, Message: MsgCheckTicketRequired}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(ctx, opCheckTicket, ticket, &err)

	t, err := s.load(ctx)
	if err != nil {
		return domain.Disclosure{}, s.storeFailure(ctx, opCheckTicket, err)
	}
	layout := domain.ResolveLayout(t.Columns)
	idx, err := findTicket(layout, t, ticket)
	if err != nil {
		return domain.Disclosure{}, err
	}
	if idx < 0 {
		return domain.Disclosure{}, &Error{Code: CodeTicketNotFound, Message: MsgCheckTicketNotFound}
	}
	return layout.Disclose(t.Rows[idx]), nil
}

// Validate loads the register and reports schema problems without changing anything.
func (s *Service) Validate(ctx context.Context) (r Report, err error) {
	defer func() { s.metrics.Operation(opValidate, codeOf(err)) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverInto(ctx, opValidate, "", &err)

	t, err := s.load(ctx)
	if err != nil {
		return Report{}, s.storeFailure(ctx, opValidate, err)
	}
	layout := domain.ResolveLayout(t.Columns)
	r = Report{
		Location:       s.store.Location(),
		Columns:        t.Columns,
		Records:        len(t.Rows),
		MissingColumns: layout.Missing(registerColumns...),
	}

	ticketCol, ok := layout.Column(domain.ColumnTicketCode)
	seen := make(map[string]int, len(t.Rows))
	for _, rec := range t.Rows {
		if ok {
			code := rec[ticketCol]
			seen[code]++
			if seen[code] == 2 {
				r.DuplicateTickets = append(r.DuplicateTickets, domain.TicketCode(code))
			}
		}
		if layout.FullyServed(rec) {
			r.FullyServed++
		}
	}
	return r, nil
}

// findTicket returns the index of the first row holding ticket, or -1.
func findTicket(layout domain.Layout, t recordstore.Table, ticket domain.TicketCode) (int, error) {
	col, ok := layout.Column(domain.ColumnTicketCode)
	if !ok {
		return -1, Internal(fmt.Errorf("colonne %q absente du registre", domain.ColumnTicketCode))
	}
	for i, rec := range t.Rows {
		if rec[col] == string(ticket) {
			return i, nil
		}
	}
	return -1, nil
}

func (s *Service) load(ctx context.Context) (recordstore.Table, error) {
	start := time.Now()
	t, err := s.store.Load(ctx)
	s.metrics.StoreCall("load", time.Since(start), err)
	return t, err
}

func (s *Service) save(ctx context.Context, t recordstore.Table) error {
	start := time.Now()
	err := s.store.Save(ctx, t)
	s.metrics.StoreCall("save", time.Since(start), err)
	return err
}

// storeFailure maps a store error onto the display taxonomy.
func (s *Service) storeFailure(ctx context.Context, op string, err error) *Error {
	out := storeError(err, s.store.Location())
	s.logger.ErrorContext(ctx, "record store failure",
		"op", op,
		"code", out.Code,
		"location", s.store.Location(),
		"err", err,
	)
	return out
}

func storeError(err error, location string) *Error {
	var se *recordstore.Error
	if !errors.As(err, &se) {
		return Internal(err)
	}
	if se.Location != "" {
		location = se.Location
	}
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return &Error{
			Code:    CodeStoreNotFound,
			Message: fmt.Sprintf("Le fichier %s n'existe pas.", location),
			Err:     err,
		}
	case errors.Is(err, recordstore.ErrUnreadable):
		return &Error{
			Code:    CodeStoreUnreadable,
			Message: fmt.Sprintf("Permission refusée pour lire le fichier %s. Vérifiez les permissions du fichier.", location),
			Err:     err,
		}
	case errors.Is(err, recordstore.ErrCorrupt):
		return &Error{
			Code:    CodeStoreCorrupt,
			Message: "Erreur lors de la lecture du fichier: " + se.Cause(),
			Err:     err,
		}
	case errors.Is(err, recordstore.ErrUnwritable) && se.Permission:
		return &Error{
			Code:    CodeStoreUnwritable,
			Message: fmt.Sprintf("Permission refusée pour écrire dans le fichier %s. Vérifiez les permissions du fichier.", location),
			Err:     err,
		}
	case errors.Is(err, recordstore.ErrUnwritable):
		return &Error{
			Code:    CodeStoreUnwritable,
			Message: "Erreur lors de l'écriture dans le fichier: " + se.Cause(),
			Err:     err,
		}
	default:
		return Internal(err)
	}
}

func (s *Service) recoverInto(ctx context.Context, op string, ticket domain.TicketCode, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.ErrorContext(ctx, "operation panicked", "op", op, "ticket", string(ticket), "panic", r)
	*errp = Internal(fmt.Errorf("%v", r))
}

func codeOf(err error) string {
	if err == nil {
		return "OK"
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}
