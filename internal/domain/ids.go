package domain

// TicketCode is the unique identifier printed on a beneficiary's ticket.
// It is compared byte-for-byte; no trimming or case folding is applied.
type TicketCode string
