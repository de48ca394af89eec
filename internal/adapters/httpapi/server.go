package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	"github.com/oapi-codegen/runtime"

	"github.com/aid-distribution/ticket-api/internal/app/distribution"
	"github.com/aid-distribution/ticket-api/internal/domain"
	"github.com/aid-distribution/ticket-api/internal/platform/metrics"
	clockport "github.com/aid-distribution/ticket-api/internal/ports/out/clock"
	"github.com/aid-distribution/ticket-api/internal/ports/out/idempotency"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	idempotencyKeyHeader = "Idempotency-Key"
	scanRoute            = "/scan"
)

type Server struct {
	Distribution *distribution.Service
	Idem         idempotency.Store
	Clock        clockport.Clock
	Logger       *slog.Logger
	Metrics      *metrics.Metrics

	// scans sharing an Idempotency-Key run one at a time within this process.
	idemLocks keyLocks
}

// NewServer wires the handlers. idem may be nil to disable replay of scans.
func NewServer(svc *distribution.Service, idem idempotency.Store, clk clockport.Clock) *Server {
	return &Server{
		Distribution: svc,
		Idem:         idem,
		Clock:        clk,
		Logger:       slog.New(slog.DiscardHandler),
	}
}

type scanRequest struct {
	TicketCode        string                    `json:"ticket_code"`
	DistributionJeton nullable.Nullable[string] `json:"distribution_jeton,omitempty"`
	NFI               nullable.Nullable[string] `json:"nfi,omitempty"`
	Outils            nullable.Nullable[string] `json:"outils,omitempty"`
	Semence           nullable.Nullable[string] `json:"semence,omitempty"`
}

type checkTicketRequest struct {
	TicketCode string `json:"ticket_code"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ticketFoundResponse struct {
	Status   string `json:"status"`
	Exists   bool   `json:"exists"`
	Info     string `json:"info"`
	InfoType string `json:"info_type"`
}

type ticketMissingResponse struct {
	Status  string `json:"status"`
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

// Scan handles POST /scan.
func (s *Server) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Idempotency handling:
	// - Replay if same key+route+bodyHash
	// - Reject if same key+route with different bodyHash (409)
	// The key stays locked until the response is stored, so a concurrent retry waits
	// and replays instead of racing the first attempt.
	idemKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	var respFP idempotency.Fingerprint
	if s.Idem != nil && idemKey != "" {
		defer s.idemLocks.lock(idemKey)()

		bodyHash, err := hashScanBody(req)
		if err != nil {
			s.internal(w, r, err)
			return
		}
		metaFP := idempotency.Fingerprint{
			Key:      idempotency.Key(idemKey),
			Method:   http.MethodPost,
			Route:    scanRoute,
			BodyHash: "",
		}
		if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
			s.internal(w, r, err)
			return
		} else if ok {
			if string(meta.Body) != bodyHash {
				writeJSON(w, r, http.StatusConflict, statusResponse{
					Status:  statusError,
					Message: "Idempotency-Key reused with a different payload",
				})
				return
			}
		} else if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   s.now(),
		}); err != nil {
			s.Logger.WarnContext(ctx, "idempotency key not recorded", "key", idemKey, "err", err)
		}

		respFP = metaFP
		respFP.BodyHash = bodyHash
		if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
			s.internal(w, r, err)
			return
		} else if ok && rec.StatusCode == http.StatusOK && strings.HasPrefix(rec.ContentType, "application/json") {
			s.Metrics.Replay()
			writeRaw(w, r, rec.StatusCode, rec.ContentType, rec.Body)
			return
		}
	}

	msg, err := s.Distribution.MarkAsServed(ctx, domain.TicketCode(req.TicketCode), milestoneUpdateFromRequest(req))
	if err != nil {
		writeJSON(w, r, http.StatusOK, statusResponse{Status: statusError, Message: s.displayMessage(ctx, err)})
		return
	}
	resp := statusResponse{Status: statusSuccess, Message: msg}

	// Store successful response for replay.
	if respFP.Key != "" {
		if b, err := json.Marshal(resp); err == nil {
			if err := s.Idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  http.StatusOK,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.now(),
			}); err != nil {
				s.Logger.WarnContext(ctx, "scan response not stored for replay", "key", idemKey, "err", err)
			}
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// CheckTicket handles POST /check-ticket.
func (s *Server) CheckTicket(w http.ResponseWriter, r *http.Request) {
	var req checkTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.writeDisclosure(w, r, domain.TicketCode(req.TicketCode))
}

// GetTicket handles GET /tickets/{ticketCode}, the read-only form of CheckTicket.
func (s *Server) GetTicket(w http.ResponseWriter, r *http.Request) {
	var code string
	err := runtime.BindStyledParameterWithOptions("simple", "ticketCode", chi.URLParam(r, "ticketCode"), &code, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, statusResponse{Status: statusError, Message: "invalid ticketCode path parameter"})
		return
	}
	s.writeDisclosure(w, r, domain.TicketCode(code))
}

func (s *Server) writeDisclosure(w http.ResponseWriter, r *http.Request, ticket domain.TicketCode) {
	ctx := r.Context()
	d, err := s.Distribution.CheckTicket(ctx, ticket)
	if err != nil {
		if ae := (*distribution.Error)(nil); errors.As(err, &ae) && ae.Code == distribution.CodeTicketNotFound {
			writeJSON(w, r, http.StatusOK, ticketMissingResponse{Status: statusError, Exists: false, Message: ae.Message})
			return
		}
		writeJSON(w, r, http.StatusOK, statusResponse{Status: statusError, Message: s.displayMessage(ctx, err)})
		return
	}
	writeJSON(w, r, http.StatusOK, ticketFoundResponse{
		Status:   statusSuccess,
		Exists:   true,
		Info:     d.Info,
		InfoType: string(d.Type),
	})
}

// displayMessage returns the user-facing text for a service failure.
func (s *Server) displayMessage(ctx context.Context, err error) string {
	if ae := (*distribution.Error)(nil); errors.As(err, &ae) {
		return ae.Message
	}
	s.Logger.ErrorContext(ctx, "unclassified service error", "err", err)
	return distribution.Internal(err).Message
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.ErrorContext(r.Context(), "idempotency store failure", "err", err)
	writeJSON(w, r, http.StatusOK, statusResponse{Status: statusError, Message: distribution.Internal(err).Message})
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func milestoneUpdateFromRequest(req scanRequest) distribution.MilestoneUpdate {
	return distribution.MilestoneUpdate{
		Jeton:   optionalFromNullable(req.DistributionJeton),
		NFI:     optionalFromNullable(req.NFI),
		Outils:  optionalFromNullable(req.Outils),
		Semence: optionalFromNullable(req.Semence),
	}
}

// optionalFromNullable maps both an absent field and an explicit null to "keep stored value".
func optionalFromNullable(n nullable.Nullable[string]) distribution.Optional[string] {
	if !n.IsSpecified() || n.IsNull() {
		return distribution.Unspecified[string]()
	}
	v, err := n.Get()
	if err != nil {
		return distribution.Unspecified[string]()
	}
	return distribution.Some(v)
}

func hashScanBody(b scanRequest) (string, error) {
	// Nulls are dropped first so that {"nfi":null} and {} share a fingerprint.
	canon := scanRequest{TicketCode: b.TicketCode}
	for _, f := range []struct {
		src nullable.Nullable[string]
		dst *nullable.Nullable[string]
	}{
		{b.DistributionJeton, &canon.DistributionJeton},
		{b.NFI, &canon.NFI},
		{b.Outils, &canon.Outils},
		{b.Semence, &canon.Semence},
	} {
		if v, err := f.src.Get(); err == nil {
			f.dst.Set(v)
		}
	}

	raw, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
