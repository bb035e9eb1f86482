package audithook

// Action constants for audit events.
const (
	// Allowance actions
	ActionAllowanceGranted  = "allowance.granted"
	ActionAllowanceConsumed = "allowance.consumed"
	ActionAllowanceModified = "allowance.modified"
	ActionAllowanceRevoked  = "allowance.revoked"
	ActionAllowanceDenied   = "allowance.denied"

	// Maintenance actions
	ActionAllowancesPurged = "allowances.purged"
)

// Resource constants for audit events.
const (
	ResourceAllowance = "allowance"
	ResourceLedger    = "ledger"
)

// Category constants for audit events.
const (
	CategoryAccess      = "access"
	CategoryUsage       = "usage"
	CategoryMaintenance = "maintenance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
