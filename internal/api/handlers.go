package api

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/service"
)

type handlers struct {
	svc        *service.Services
	dateLayout string
}

func (h *handlers) parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(h.dateLayout, value, time.UTC)
	if err != nil {
		return nil, badRequest(field + ": expected date as " + h.dateLayout)
	}
	return &t, nil
}

// Accounts

type accountRequest struct {
	Name string `json:"name"`
}

func (h *handlers) listAccounts(c *fiber.Ctx) error {
	accts, err := h.svc.Ledger.ListAccounts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(accts))
}

func (h *handlers) createAccount(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	acct, err := h.svc.Ledger.CreateAccount(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(acct)
}

func (h *handlers) getAccount(c *fiber.Ctx) error {
	acct, err := h.svc.Ledger.Account(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(acct)
}

func (h *handlers) deleteAccount(c *fiber.Ctx) error {
	if err := h.svc.Ledger.DeleteAccount(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Categories

type categoryRequest struct {
	TransactionType string `json:"transaction_type"`
	MacroCategory   string `json:"macro_category"`
	Name            string `json:"name"`
}

func (h *handlers) listCategories(c *fiber.Ctx) error {
	cats, err := h.svc.Ledger.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(cats))
}

func (h *handlers) createCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	cat, err := h.svc.Ledger.CreateCategory(c.UserContext(), req.TransactionType, req.MacroCategory, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *handlers) deleteCategory(c *fiber.Ctx) error {
	if err := h.svc.Ledger.DeleteCategory(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Rules

// ruleRequest accepts the category either by id or by name/path.
type ruleRequest struct {
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
	CategoryID string  `json:"category_id"`
	Category   string  `json:"category"`
	Pattern    *string `json:"pattern"`
	DateStart  string  `json:"date_start"`
	DateEnd    string  `json:"date_end"`
	SortOrder  int     `json:"sort_order"`
}

func (h *handlers) ruleInput(c *fiber.Ctx) (service.RuleInput, error) {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return service.RuleInput{}, badRequest("invalid request body")
	}
	in := service.RuleInput{
		Name:       req.Name,
		Label:      req.Label,
		Percentage: req.Percentage,
		CategoryID: req.CategoryID,
		Pattern:    req.Pattern,
		SortOrder:  req.SortOrder,
	}
	if in.CategoryID == "" && req.Category != "" {
		cat, err := h.svc.Ledger.FindCategory(c.UserContext(), req.Category)
		if err != nil {
			return in, err
		}
		in.CategoryID = cat.ID
	}
	var err error
	if in.DateStart, err = h.parseDate("date_start", req.DateStart); err != nil {
		return in, err
	}
	if in.DateEnd, err = h.parseDate("date_end", req.DateEnd); err != nil {
		return in, err
	}
	return in, nil
}

func (h *handlers) listRules(c *fiber.Ctx) error {
	all, err := h.svc.Rules.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(nonNil(all))
}

func (h *handlers) createRule(c *fiber.Ctx) error {
	in, err := h.ruleInput(c)
	if err != nil {
		return err
	}
	rule, err := h.svc.Rules.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *handlers) updateRule(c *fiber.Ctx) error {
	in, err := h.ruleInput(c)
	if err != nil {
		return err
	}
	rule, err := h.svc.Rules.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(rule)
}

func (h *handlers) deleteRule(c *fiber.Ctx) error {
	if err := h.svc.Rules.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) accountRules(c *fiber.Ctx) error {
	ctx := c.UserContext()
	active, err := h.svc.Registry.ActiveRules(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	inactive, err := h.svc.Registry.InactiveRules(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"active": nonNil(active), "inactive": nonNil(inactive)})
}

func (h *handlers) createAccountRule(c *fiber.Ctx) error {
	in, err := h.ruleInput(c)
	if err != nil {
		return err
	}
	rule, err := h.svc.Rules.CreateForAccount(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *handlers) activate(c *fiber.Ctx) error {
	if err := h.svc.Registry.Activate(c.UserContext(), c.Params("id"), c.Params("ruleID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) deactivate(c *fiber.Ctx) error {
	if err := h.svc.Registry.Deactivate(c.UserContext(), c.Params("id"), c.Params("ruleID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Categorization

func (h *handlers) preview(c *fiber.Ctx) error {
	rows, err := h.svc.Preview.Preview(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

func (h *handlers) apply(c *fiber.Ctx) error {
	res, err := h.svc.Apply.Apply(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *handlers) resolve(c *fiber.Ctx) error {
	var items []service.Resolution
	if err := c.BodyParser(&items); err != nil {
		return badRequest("expected a list of {transaction_id, rule_id}")
	}
	results, err := h.svc.Resolve.Resolve(c.UserContext(), c.Params("id"), items)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

// Transactions

type transactionRequest struct {
	Description   string          `json:"description"`
	Value         decimal.Decimal `json:"value"`
	Date          string          `json:"date"`
	CategoryID    *string         `json:"category_id"`
	Label         string          `json:"label"`
	PercToExclude float64         `json:"perc_to_exclude"`
}

func (h *handlers) listTransactions(c *fiber.Ctx) error {
	f := repository.TransactionFilters{
		AccountID:     c.Params("id"),
		CategoryID:    c.Query("category_id"),
		Uncategorized: c.QueryBool("uncategorized"),
		Search:        c.Query("search"),
	}
	if _, err := h.svc.Ledger.Account(c.UserContext(), f.AccountID); err != nil {
		return err
	}
	from, err := h.parseDate("from", c.Query("from"))
	if err != nil {
		return err
	}
	to, err := h.parseDate("to", c.Query("to"))
	if err != nil {
		return err
	}
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = *to
	}
	txs, err := h.svc.Ledger.ListTransactions(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(nonNil(txs))
}

func (h *handlers) addTransaction(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	date, err := h.parseDate("date", req.Date)
	if err != nil {
		return err
	}
	in := service.TransactionInput{
		AccountID:     c.Params("id"),
		Value:         req.Value,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Label:         req.Label,
		PercToExclude: req.PercToExclude,
	}
	if date != nil {
		in.Date = *date
	}
	tx, err := h.svc.Ledger.AddTransaction(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

// transactionEditRequest carries only the fields to change.
type transactionEditRequest struct {
	Description   *string          `json:"description"`
	Value         *decimal.Decimal `json:"value"`
	Date          *string          `json:"date"`
	CategoryID    *string          `json:"category_id"`
	Label         *string          `json:"label"`
	PercToExclude *float64         `json:"perc_to_exclude"`
}

func (h *handlers) editTransaction(c *fiber.Ctx) error {
	var req transactionEditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	edit := service.TransactionEdit{
		Value:         req.Value,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Label:         req.Label,
		PercToExclude: req.PercToExclude,
	}
	if req.Date != nil {
		date, err := h.parseDate("date", *req.Date)
		if err != nil {
			return err
		}
		if date == nil {
			return badRequest("date must not be empty")
		}
		edit.Date = date
	}
	tx, err := h.svc.Ledger.EditTransaction(c.UserContext(), c.Params("id"), edit)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *handlers) deleteTransaction(c *fiber.Ctx) error {
	if err := h.svc.Ledger.DeleteTransaction(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Budgets

// listBudgets serves both /budgets and /accounts/:id/budgets.
func (h *handlers) listBudgets(c *fiber.Ctx) error {
	budgets, err := h.svc.Ledger.ListBudgets(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(nonNil(budgets))
}

func (h *handlers) createBudget(c *fiber.Ctx) error {
	var in service.BudgetInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid request body")
	}
	b, err := h.svc.Ledger.CreateBudget(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *handlers) updateBudget(c *fiber.Ctx) error {
	var in service.BudgetInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid request body")
	}
	b, err := h.svc.Ledger.UpdateBudget(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

func (h *handlers) deleteBudget(c *fiber.Ctx) error {
	if err := h.svc.Ledger.DeleteBudget(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Import

func (h *handlers) importSettings(c *fiber.Ctx) error {
	s, err := h.svc.Ingest.LoadSettings(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(s)
}

func (h *handlers) saveImportSettings(c *fiber.Ctx) error {
	var req service.SettingsInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	s, err := h.svc.Ingest.SaveSettings(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(s)
}

// importStatement reads the CSV from the request body. ?delimiter= picks the separator.
func (h *handlers) importStatement(c *fiber.Ctx) error {
	comma := ','
	if d := c.Query("delimiter"); d != "" {
		if d == `\t` {
			d = "\t"
		}
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return badRequest("delimiter must be a single character")
		}
		comma = r
	}
	res, err := h.svc.Ingest.Import(c.UserContext(), c.Params("id"), bytes.NewReader(c.Body()), comma)
	if err != nil {
		return err
	}
	errs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, e.Error())
	}
	return c.JSON(fiber.Map{
		"rows_imported": res.Imported,
		"rows_skipped":  res.Skipped,
		"errors":        errs,
	})
}

// Backup

func (h *handlers) backup(c *fiber.Ctx) error {
	b, err := h.svc.Backup.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="jaskledger-`+strconv.FormatInt(b.CreatedAt.Unix(), 10)+`.json"`)
	return c.JSON(b)
}

func (h *handlers) restore(c *fiber.Ctx) error {
	counts, err := h.svc.Backup.Import(c.UserContext(), bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	return c.JSON(counts)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
