package entity

// Lifecycle status codes stored in EmissionRecord.StatusCode / propagated to
// DocumentHeader.StatusCode. SIFEN-issued codes (dCodRes) take precedence
// over these defaults whenever SIFEN supplies one.
const (
	StatusAwaitingPoll      = "900" // submit ok, or transient reprocessing
	StatusApprovedDefault   = "0201"
	StatusRejectedDefault   = "0300"
	StatusRetriesExhausted  = "998"
	StatusCancelled         = "600"
	StatusSubmitProtocolErr = "999"
)

// MaxPollAttemptsDefault bounds the poll-reschedule chain when configuration
// does not override it.
const MaxPollAttemptsDefault = 10
