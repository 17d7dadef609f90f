package stores

import (
	"time"

	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

// StoredRecord is one persisted result record with its storage metadata.
type StoredRecord struct {
	// ID is the storage-assigned row id, monotonically increasing in
	// insertion order.
	ID int64

	// Kind is the record variant tag.
	Kind results.Kind

	// BatchID is the evaluation batch the record belongs to.
	BatchID int

	// Source is the plan component that emitted the record's event.
	Source string

	// Tag is the emitting step's source tag.
	Tag string

	// Record is the decoded result record.
	Record results.Record

	// CreatedAt is the persistence timestamp.
	CreatedAt time.Time
}

// ListFilter narrows a record listing. Zero values match everything.
type ListFilter struct {
	// Kind restricts to one record variant.
	Kind results.Kind

	// BatchID restricts to one batch; nil matches all batches.
	BatchID *int

	// Tag restricts to records emitted under one source tag.
	Tag string
}
