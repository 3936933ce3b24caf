package models

import (
	"context"
	"errors"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreditEntryKind string

const (
	CreditEntryKindGrant      CreditEntryKind = "grant"
	CreditEntryKindPurchase   CreditEntryKind = "purchase"
	CreditEntryKindDeduction  CreditEntryKind = "deduction"
	CreditEntryKindRefund     CreditEntryKind = "refund"
	CreditEntryKindAdjustment CreditEntryKind = "adjustment"
)

// Cost of one full article generation run.
var GenerationCreditCost = decimal.NewFromInt(1)

var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditBalance is the denormalized running balance, one row per workspace.
// The entries are the source of truth; the balance row is kept in step
// inside the same transaction as every entry.
type CreditBalance struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WorkspaceId string          `gorm:"size:36;not null;unique" json:"workspace_id"`
	Balance     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type CreditEntry struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WorkspaceId string          `gorm:"size:36;not null;index" json:"workspace_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Kind        CreditEntryKind `gorm:"size:20;not null" json:"kind"`
	ReferenceId *string         `gorm:"size:36;index" json:"reference_id"`
	Description string          `gorm:"size:255" json:"description"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetCreditBalance(ctx context.Context, workspaceId string) (*CreditBalance, error) {
	db := config.GetDB()
	var result CreditBalance
	err := db.WithContext(ctx).Where("workspace_id = ?", workspaceId).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// HasEnoughCredits is a cheap pre-check; the authoritative check happens
// inside DeductCredits under row lock.
func HasEnoughCredits(ctx context.Context, workspaceId string, amount decimal.Decimal) (bool, error) {
	balance, err := GetCreditBalance(ctx, workspaceId)
	if err != nil {
		return false, err
	}
	return balance.Balance.GreaterThanOrEqual(amount), nil
}

// DeductCredits atomically debits the workspace balance and records a
// ledger entry. Returns ErrInsufficientCredits when the locked balance
// cannot cover the amount.
func DeductCredits(ctx context.Context, tx *gorm.DB, workspaceId string, amount decimal.Decimal, referenceId string, description string) error {
	if tx == nil {
		tx = config.GetDB().WithContext(ctx)
	}
	var balance CreditBalance
	err := tx.Clauses(clauseForUpdate()).Where("workspace_id = ?", workspaceId).First(&balance).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}
	if balance.Balance.LessThan(amount) {
		return ErrInsufficientCredits
	}
	newBalance := balance.Balance.Sub(amount)
	if err := tx.Model(&CreditBalance{}).Where("id = ?", balance.ID).Update("balance", newBalance).Error; err != nil {
		return err
	}
	entry := CreditEntry{
		WorkspaceId: workspaceId,
		Amount:      amount.Neg(),
		Kind:        CreditEntryKindDeduction,
		ReferenceId: utils.NilIfEmpty(referenceId),
		Description: description,
	}
	return tx.Create(&entry).Error
}

// RefundCredits credits back a prior deduction, e.g. when a generation
// fails before producing anything billable.
func RefundCredits(ctx context.Context, tx *gorm.DB, workspaceId string, amount decimal.Decimal, referenceId string, description string) error {
	if tx == nil {
		tx = config.GetDB().WithContext(ctx)
	}
	var balance CreditBalance
	err := tx.Clauses(clauseForUpdate()).Where("workspace_id = ?", workspaceId).First(&balance).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}
	newBalance := balance.Balance.Add(amount)
	if err := tx.Model(&CreditBalance{}).Where("id = ?", balance.ID).Update("balance", newBalance).Error; err != nil {
		return err
	}
	entry := CreditEntry{
		WorkspaceId: workspaceId,
		Amount:      amount,
		Kind:        CreditEntryKindRefund,
		ReferenceId: utils.NilIfEmpty(referenceId),
		Description: description,
	}
	return tx.Create(&entry).Error
}

func GetCreditEntries(ctx context.Context, workspaceId string, limit int, offset int) ([]*CreditEntry, error) {
	db := config.GetDB()
	var results []*CreditEntry
	err := db.WithContext(ctx).
		Where("workspace_id = ?", workspaceId).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&results).Error
	return results, err
}
