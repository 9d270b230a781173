package idempotency

const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// Record is what is kept under an idempotency key: a marker while the first
// request runs, then the response it produced.
type Record struct {
	Status         string `json:"status"`
	Fingerprint    string `json:"fingerprint"`
	ResponseStatus int    `json:"responseStatus,omitempty"`
	ContentType    string `json:"contentType,omitempty"`
	ResponseBody   []byte `json:"responseBody,omitempty"`
}
