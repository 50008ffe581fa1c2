package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrScanID      = "scan.id"
	AttrServer      = "scan.server"
	AttrShare       = "scan.share"
	AttrShareType   = "scan.share_type"
	AttrPermission  = "scan.permission"
	AttrShareCount  = "scan.share_count"
	AttrBackend     = "directory.backend"
	AttrRPCOp       = "rpc.operation"
	AttrRPCStatus   = "rpc.status"
	AttrDestination = "export.destination"
	AttrRecords     = "export.records"
	AttrBucket      = "s3.bucket"
	AttrKey         = "s3.key"
)

// Span names.
const (
	SpanScan           = "scan.run"
	SpanListShares     = "directory.list_shares"
	SpanGetPermissions = "directory.get_permissions"
	SpanRPCCall        = "rpc.call"
	SpanExport         = "export.csv"
)

func ScanID(id string) attribute.KeyValue {
	return attribute.String(AttrScanID, id)
}

func Server(name string) attribute.KeyValue {
	return attribute.String(AttrServer, name)
}

func Share(name string) attribute.KeyValue {
	return attribute.String(AttrShare, name)
}

func ShareType(t string) attribute.KeyValue {
	return attribute.String(AttrShareType, t)
}

func Permission(label string) attribute.KeyValue {
	return attribute.String(AttrPermission, label)
}

func ShareCount(n int) attribute.KeyValue {
	return attribute.Int(AttrShareCount, n)
}

func Backend(name string) attribute.KeyValue {
	return attribute.String(AttrBackend, name)
}

func RPCOp(op string) attribute.KeyValue {
	return attribute.String(AttrRPCOp, op)
}

// RPCStatus renders a Win32/NERR status as 0x%08X.
func RPCStatus(status uint32) attribute.KeyValue {
	return attribute.String(AttrRPCStatus, fmt.Sprintf("0x%08X", status))
}

func Destination(dest string) attribute.KeyValue {
	return attribute.String(AttrDestination, dest)
}

func Records(n int) attribute.KeyValue {
	return attribute.Int(AttrRecords, n)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartScanSpan starts the root span of one scan run.
func StartScanSpan(ctx context.Context, scanID, server string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanScan,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(ScanID(scanID), Server(server)),
	)
}

// StartDirectorySpan starts a client span for a share-directory request.
func StartDirectorySpan(ctx context.Context, name, server string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Server(server)}, attrs...)
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

// StartExportSpan starts a span covering one CSV export.
func StartExportSpan(ctx context.Context, destination string, records int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanExport,
		trace.WithAttributes(Destination(destination), Records(records)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
