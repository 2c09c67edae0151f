package constants

// RunStatus is the canonical status for rows in processing_run.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusQueued    RunStatus = "QUEUED"    // accepted, not started
	RunStatusRunning   RunStatus = "RUNNING"   // in progress
	RunStatusOCROK     RunStatus = "OCR_OK"    // stage 1 completed (text extracted)
	RunStatusParsed    RunStatus = "PARSED"    // structured record validated
	RunStatusSubmitted RunStatus = "SUBMITTED" // posted to the ledger
	RunStatusReview    RunStatus = "REVIEW"    // held for human review
	RunStatusRejected  RunStatus = "REJECTED"  // gate rejected
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure
)

// ProvenanceTag is attached to every transaction this pipeline submits so
// ledger-side searches can tell machine-created entries apart.
const ProvenanceTag = "receipt2ledger"
