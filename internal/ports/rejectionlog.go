package ports

import "context"

// RejectionRecorder persists an append-only audit trail of markets the
// Market Fetcher (C2) rejected during tradability filtering — a durable
// record alongside the structured log lines, for after-the-fact review of
// why a market never reached a firm.
type RejectionRecorder interface {
	RecordRejection(ctx context.Context, marketID, reason string) error
}

// NopRejectionRecorder discards every record. Used when no audit log is
// configured.
type NopRejectionRecorder struct{}

func (NopRejectionRecorder) RecordRejection(context.Context, string, string) error { return nil }
