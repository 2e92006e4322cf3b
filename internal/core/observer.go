package core

// Observer receives operational events from the Service. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	RecordsListed(role Role, returned int)
	SortFellBack(requested string)
	IngestFinished(phase IngestPhase, rows int, violations int)
	RecordsMutated(action AuditAction, n int64)
}

type nopObserver struct{}

func (nopObserver) RecordsListed(Role, int) {}
func (nopObserver) SortFellBack(string) {}
func (nopObserver) IngestFinished(IngestPhase, int, int) {}
func (nopObserver) RecordsMutated(AuditAction, int64) {}
