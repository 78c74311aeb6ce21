package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
)

// IngestService imports bank statements using each account's column layout.
type IngestService struct {
	Accounts     AccountStore
	Transactions TransactionStore
	Settings     ImportSettingsStore
}

type IngestResult struct {
	Imported int     `json:"rows_imported"`
	Skipped  int     `json:"rows_skipped"`
	Errors   []error `json:"-"`
}

// SettingsInput is the editable part of an account's import layout.
type SettingsInput struct {
	DateIndex        int    `json:"date_index"`
	DescriptionIndex int    `json:"description_index"`
	ValueIndex       int    `json:"value_index"`
	StarterString    string `json:"starter_string"`
}

func (s *IngestService) SaveSettings(ctx context.Context, accountID string, in SettingsInput) (repository.ImportSettings, error) {
	if err := s.requireAccount(ctx, accountID); err != nil {
		return repository.ImportSettings{}, err
	}
	if in.DateIndex < 0 || in.DescriptionIndex < 0 || in.ValueIndex < 0 {
		return repository.ImportSettings{}, fmt.Errorf("column indexes must not be negative: %w", ErrInvalidInput)
	}
	settings := repository.ImportSettings{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		DateIndex:        in.DateIndex,
		DescriptionIndex: in.DescriptionIndex,
		ValueIndex:       in.ValueIndex,
		StarterString:    in.StarterString,
	}
	if err := s.Settings.Save(ctx, settings); err != nil {
		return repository.ImportSettings{}, fmt.Errorf("save import settings: %w", err)
	}
	return s.LoadSettings(ctx, accountID)
}

func (s *IngestService) LoadSettings(ctx context.Context, accountID string) (repository.ImportSettings, error) {
	settings, err := s.Settings.Get(ctx, accountID)
	if err != nil {
		return repository.ImportSettings{}, fmt.Errorf("get import settings: %w", err)
	}
	if settings == nil {
		return repository.ImportSettings{}, fmt.Errorf("import settings for account %s: %w", accountID, ErrNotFound)
	}
	return *settings, nil
}

// Import reads delimited rows from r. Rows up to and including the first one with a
// cell containing the account's starter string are skipped; an empty starter string
// imports every row. Values may use a comma as decimal separator. Imported
// transactions start uncategorized.
func (s *IngestService) Import(ctx context.Context, accountID string, r io.Reader, comma rune) (IngestResult, error) {
	res := IngestResult{}
	if err := s.requireAccount(ctx, accountID); err != nil {
		return res, err
	}
	settings, err := s.LoadSettings(ctx, accountID)
	if err != nil {
		return res, err
	}
	if comma == 0 {
		comma = ','
	}

	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.Comma = comma
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true

	started := settings.StarterString == ""
	created := database.Now()
	need := max(settings.DateIndex, settings.DescriptionIndex, settings.ValueIndex) + 1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if !started {
			started = containsCell(rec, settings.StarterString)
			continue
		}
		if blank(rec) {
			res.Skipped++
			continue
		}
		if len(rec) < need {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: expected at least %d columns", line, need))
			continue
		}
		date, err := parseStatementDate(rec[settings.DateIndex])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d date: %w", line, err))
			continue
		}
		value, err := parseAmount(rec[settings.ValueIndex])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d value: %w", line, err))
			continue
		}
		t := repository.Transaction{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Value:       value,
			Description: strings.TrimSpace(rec[settings.DescriptionIndex]),
			Date:        date,
			CreatedAt:   created,
		}
		if err := s.Transactions.Insert(ctx, t); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d insert: %w", line, err))
			continue
		}
		res.Imported++
	}
	if !started {
		return res, fmt.Errorf("starter string %q not found: %w", settings.StarterString, ErrInvalidInput)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("account_id", accountID).Int("imported", res.Imported).Int("skipped", res.Skipped).Int("errors", len(res.Errors)).Msg("statement imported")
	return res, nil
}

func (s *IngestService) requireAccount(ctx context.Context, accountID string) error {
	acct, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account %s: %w", accountID, err)
	}
	if acct == nil {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

func containsCell(rec []string, needle string) bool {
	for _, v := range rec {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var statementDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02 15:04:05",
}

// parseStatementDate accepts the common day-first layouts and spreadsheet serial day numbers.
func parseStatementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range statementDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		// serial 1 is 1900-01-01 and the format counts a nonexistent 1900-02-29
		return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-2), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount accepts "1234.56", "1234,56", "1.234,56" and "1,234.56".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
