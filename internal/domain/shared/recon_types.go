package shared

// ReconciliationStatus tracks where an item sits in the reconciliation
// lifecycle. Settlements carry three independent axes of this status
// (bank, fee, overall); statements and applied fees carry one.
type ReconciliationStatus string

const (
	StatusPending        ReconciliationStatus = "PENDING"
	StatusInProgress     ReconciliationStatus = "IN_PROGRESS"
	StatusMatched        ReconciliationStatus = "MATCHED"
	StatusDiscrepancy    ReconciliationStatus = "DISCREPANCY"
	StatusReviewRequired ReconciliationStatus = "REVIEW_REQUIRED"
	StatusApproved       ReconciliationStatus = "APPROVED"
	StatusRejected       ReconciliationStatus = "REJECTED"
	StatusCompleted      ReconciliationStatus = "COMPLETED"
	StatusFailed         ReconciliationStatus = "FAILED"
)

// IsTerminalSuccess reports whether the status counts as a finished,
// successful sub-process when rolling up a settlement's overall status.
func (s ReconciliationStatus) IsTerminalSuccess() bool {
	return s == StatusMatched || s == StatusApproved || s == StatusCompleted
}

// RunStatus defines reconciliation run lifecycle states
type RunStatus string

const (
	RunStatusInitialized RunStatus = "INITIALIZED"
	RunStatusRunning     RunStatus = "RUNNING"
	RunStatusCompleted   RunStatus = "COMPLETED"
	RunStatusFailed      RunStatus = "FAILED"
	RunStatusCancelled   RunStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunType defines the cadence that triggered a run
type RunType string

const (
	RunTypeDaily     RunType = "DAILY"
	RunTypeAdhoc     RunType = "ADHOC"
	RunTypeMonthly   RunType = "MONTHLY"
	RunTypeQuarterly RunType = "QUARTERLY"
)

// RunStep names the ordered pipeline steps the orchestrator drives.
// Import runs before any reconciliation cycle, so it is not listed here.
type RunStep string

const (
	StepMatch        RunStep = "match"
	StepFeeReconcile RunStep = "fee-reconcile"
	StepReviewRoute  RunStep = "review-route"
)

// DefaultRunSteps is the pipeline order for a full reconciliation run
var DefaultRunSteps = []RunStep{StepMatch, StepFeeReconcile, StepReviewRoute}

// FeeType categorizes platform fees
type FeeType string

const (
	FeeTypeCommission FeeType = "COMMISSION"
	FeeTypeAds        FeeType = "ADS"
	FeeTypeMDR        FeeType = "MDR"
	FeeTypePromo      FeeType = "PROMO"
	FeeTypeOther      FeeType = "OTHER"
)

// CalculationMethod defines how an expected fee amount is derived
type CalculationMethod string

const (
	CalcPercentage CalculationMethod = "PERCENTAGE"
	CalcFixed      CalculationMethod = "FIXED"
	CalcTiered     CalculationMethod = "TIERED"
)

// ApplyTo selects the settlement amount a fee rule applies against
type ApplyTo string

const (
	ApplyToGross    ApplyTo = "GROSS"
	ApplyToNett     ApplyTo = "NETT"
	ApplyToAfterTax ApplyTo = "AFTER_TAX"
)

// StatementSource records how a bank statement line entered the system
type StatementSource string

const (
	SourceManual     StatementSource = "MANUAL"
	SourceAPI        StatementSource = "API"
	SourceEmail      StatementSource = "EMAIL"
	SourceAutoImport StatementSource = "AUTO_IMPORT"
)

// ReviewItemType addresses the two kinds of items that can land in manual review
type ReviewItemType string

const (
	ReviewItemMatch ReviewItemType = "MATCH"
	ReviewItemFee   ReviewItemType = "FEE"
)
