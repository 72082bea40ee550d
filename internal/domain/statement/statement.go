package statement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/shared"
)

var (
	ErrEmptyBankAccount = errors.New("bank account id cannot be empty")
	ErrMissingFileHash  = errors.New("file hash cannot be empty")
)

// Statement represents one bank ledger line. Created by import; mutated only
// by the matching engine. A statement binds to at most one settlement, ever.
type Statement struct {
	ID              uuid.UUID  `json:"id"`
	CompanyID       uuid.UUID  `json:"company_id"`
	BankAccountID   uuid.UUID  `json:"bank_account_id"`
	StatementDate   time.Time  `json:"statement_date"`
	TransactionDate time.Time  `json:"transaction_date"`
	Description     string     `json:"description"`
	ReferenceNumber string     `json:"reference_number,omitempty"`
	DebitAmount     int64      `json:"debit_amount"`
	CreditAmount    int64      `json:"credit_amount"`
	Balance         int64      `json:"balance"`
	SettlementID    *uuid.UUID `json:"settlement_id,omitempty"`

	ReconciliationStatus shared.ReconciliationStatus `json:"reconciliation_status"`
	MatchedAt            *time.Time                  `json:"matched_at,omitempty"`
	MatchedBy            string                      `json:"matched_by,omitempty"`

	SourceType      shared.StatementSource `json:"source_type"`
	SourceReference string                 `json:"source_reference,omitempty"`
	FileHash        string                 `json:"file_hash,omitempty"`
	ImportedAt      time.Time              `json:"imported_at"`
}

// NewStatement creates a pending bank statement line from imported data
func NewStatement(companyID, bankAccountID uuid.UUID, statementDate, transactionDate time.Time, description, reference string, debit, credit, balance int64, source shared.StatementSource, fileHash string) (*Statement, error) {
	if bankAccountID == uuid.Nil {
		return nil, ErrEmptyBankAccount
	}
	if fileHash == "" {
		return nil, ErrMissingFileHash
	}

	return &Statement{
		ID:                   uuid.New(),
		CompanyID:            companyID,
		BankAccountID:        bankAccountID,
		StatementDate:        statementDate,
		TransactionDate:      transactionDate,
		Description:          description,
		ReferenceNumber:      reference,
		DebitAmount:          debit,
		CreditAmount:         credit,
		Balance:              balance,
		ReconciliationStatus: shared.StatusPending,
		SourceType:           source,
		FileHash:             fileHash,
		ImportedAt:           time.Now(),
	}, nil
}

// IsClaimed reports whether the statement is already bound to a settlement
func (s *Statement) IsClaimed() bool {
	return s.SettlementID != nil
}
