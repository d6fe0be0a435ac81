package store

import "context"

// Origin identifies which code path is issuing a structural write.
type Origin int

const (
	// OriginUnknown is any caller that did not declare itself.
	OriginUnknown Origin = iota
	// OriginReconciler is the reconciliation engine and its directive processor.
	OriginReconciler
	// OriginAdminInsert is the single-term admin insertion endpoint.
	OriginAdminInsert
)

func (o Origin) String() string {
	switch o {
	case OriginReconciler:
		return "reconciler"
	case OriginAdminInsert:
		return "admin-insert"
	default:
		return "unknown"
	}
}

type originKey struct{}

// WithOrigin returns a context that tags store writes with o.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom returns the origin carried by ctx, or OriginUnknown.
func OriginFrom(ctx context.Context) Origin {
	if o, ok := ctx.Value(originKey{}).(Origin); ok {
		return o
	}
	return OriginUnknown
}

type writeOp string

const (
	opCreate writeOp = "create"
	opRename writeOp = "rename"
	opDelete writeOp = "delete"
)

// allows reports whether o may perform op on a managed taxonomy.
func (o Origin) allows(op writeOp) bool {
	switch o {
	case OriginReconciler:
		return true
	case OriginAdminInsert:
		return op == opCreate
	default:
		return false
	}
}
