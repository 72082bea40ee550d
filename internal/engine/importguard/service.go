// Package importguard ingests settlement report and bank statement files.
// Every file is content-hashed before anything is written; a hash already
// seen for the same scope rejects the whole upload, which is what makes
// re-uploading a file after a network hiccup safe.
package importguard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

const dateLayout = "2006-01-02"

// Service imports platform and bank files behind the duplicate guard
type Service struct {
	logger      *slog.Logger
	settlements settlement.Repository
	statements  statement.Repository
}

// NewService creates the import service
func NewService(logger *slog.Logger, settlements settlement.Repository, statements statement.Repository) *Service {
	return &Service{
		logger:      logger,
		settlements: settlements,
		statements:  statements,
	}
}

// HashContent returns the hex sha256 digest used as the import fingerprint
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ImportSettlementFile ingests one platform settlement CSV. Expected columns:
// transaction_date, report_date, release_date, gross_amount,
// commission_amount, ads_amount, other_fees_amount, nett_amount. Amounts are
// minor units. One file carries one settlement; duplicates are detected per
// company+platform by content hash.
func (s *Service) ImportSettlementFile(ctx context.Context, companyID uuid.UUID, platformCode string, branchID *uuid.UUID, filename string, content []byte, importedBy string) (*settlement.Report, error) {
	hash := HashContent(content)

	existing, err := s.settlements.FindByFileHash(ctx, companyID, platformCode, hash)
	if err != nil {
		return nil, shared.NewDatabaseError("settlement duplicate lookup", err)
	}
	if existing != nil {
		s.logger.Warn("Duplicate settlement file rejected",
			"filename", filename,
			"hash", hash,
			"existing_id", existing.ID.String())
		return nil, shared.NewDuplicateImportError(filename, hash)
	}

	row, err := readSingleRecord(content, 8)
	if err != nil {
		return nil, shared.NewInvalidFormatError(filename, err.Error())
	}

	transactionDate, err := time.Parse(dateLayout, row[0])
	if err != nil {
		return nil, shared.NewInvalidFormatError(filename, "bad transaction_date: "+row[0])
	}
	reportDate, err := time.Parse(dateLayout, row[1])
	if err != nil {
		return nil, shared.NewInvalidFormatError(filename, "bad report_date: "+row[1])
	}
	releaseDate, err := time.Parse(dateLayout, row[2])
	if err != nil {
		return nil, shared.NewInvalidFormatError(filename, "bad release_date: "+row[2])
	}

	amounts := make([]int64, 5)
	for i, col := range row[3:] {
		amounts[i], err = strconv.ParseInt(col, 10, 64)
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, "bad amount: "+col)
		}
	}

	report, err := settlement.NewReport(
		companyID, platformCode, branchID,
		transactionDate, reportDate, releaseDate,
		amounts[0], amounts[1], amounts[2], amounts[3], amounts[4],
		filename, hash, importedBy,
	)
	if err != nil {
		return nil, shared.NewValidationError("settlement", err.Error())
	}

	if err := s.settlements.Create(ctx, report); err != nil {
		return nil, shared.NewDatabaseError("create settlement report", err)
	}

	s.logger.Info("Settlement file imported",
		"settlement_id", report.ID.String(),
		"platform_code", platformCode,
		"filename", filename,
		"nett_amount", report.NettAmount)

	return report, nil
}

// ImportStatementFile ingests one bank statement CSV. Expected columns:
// statement_date, transaction_date, description, reference_number,
// debit_amount, credit_amount, balance. Every line of the file becomes one
// statement row; duplicates are detected per company+bank account by content
// hash of the whole file.
func (s *Service) ImportStatementFile(ctx context.Context, companyID, bankAccountID uuid.UUID, filename string, content []byte, source shared.StatementSource) ([]*statement.Statement, error) {
	if bankAccountID == uuid.Nil {
		return nil, shared.NewBankAccountNotFoundError(bankAccountID.String())
	}

	hash := HashContent(content)

	existing, err := s.statements.FindByFileHash(ctx, companyID, bankAccountID, hash)
	if err != nil {
		return nil, shared.NewDatabaseError("statement duplicate lookup", err)
	}
	if existing != nil {
		s.logger.Warn("Duplicate bank statement file rejected",
			"filename", filename,
			"hash", hash)
		return nil, shared.NewDuplicateImportError(filename, hash)
	}

	records, err := readRecords(content, 7)
	if err != nil {
		return nil, shared.NewInvalidFormatError(filename, err.Error())
	}
	if len(records) == 0 {
		return nil, shared.NewInvalidFormatError(filename, "file contains no statement lines")
	}

	stmts := make([]*statement.Statement, 0, len(records))
	for i, row := range records {
		statementDate, err := time.Parse(dateLayout, row[0])
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, fmt.Sprintf("line %d: bad statement_date: %s", i+1, row[0]))
		}
		transactionDate, err := time.Parse(dateLayout, row[1])
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, fmt.Sprintf("line %d: bad transaction_date: %s", i+1, row[1]))
		}
		debit, err := strconv.ParseInt(row[4], 10, 64)
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, fmt.Sprintf("line %d: bad debit_amount: %s", i+1, row[4]))
		}
		credit, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, fmt.Sprintf("line %d: bad credit_amount: %s", i+1, row[5]))
		}
		balance, err := strconv.ParseInt(row[6], 10, 64)
		if err != nil {
			return nil, shared.NewInvalidFormatError(filename, fmt.Sprintf("line %d: bad balance: %s", i+1, row[6]))
		}

		stmt, err := statement.NewStatement(
			companyID, bankAccountID,
			statementDate, transactionDate,
			row[2], row[3],
			debit, credit, balance,
			source, hash,
		)
		if err != nil {
			return nil, shared.NewValidationError("statement", err.Error())
		}
		stmt.SourceReference = filename
		stmts = append(stmts, stmt)
	}

	for _, stmt := range stmts {
		if err := s.statements.Create(ctx, stmt); err != nil {
			return nil, shared.NewDatabaseError("create bank statement", err)
		}
	}

	s.logger.Info("Bank statement file imported",
		"bank_account_id", bankAccountID.String(),
		"filename", filename,
		"lines", len(stmts))

	return stmts, nil
}

// readSingleRecord parses a CSV with a header and exactly one data row
func readSingleRecord(content []byte, fields int) ([]string, error) {
	records, err := readRecords(content, fields)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("expected exactly one data row, found %d", len(records))
	}
	return records[0], nil
}

// readRecords parses CSV data rows, skipping the header line
func readRecords(content []byte, fields int) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = fields
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("file is empty")
		}
		return nil, fmt.Errorf("bad header: %w", err)
	}

	var records [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, row)
	}
	return records, nil
}
