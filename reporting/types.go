// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reporting

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnknownStatus   = errors.New("unknown report status")
	ErrUnknownCategory = errors.New("unknown report category")
)

// Status is the investigation state of a report
type Status uint8

const (
	StatusSubmitted Status = iota
	StatusUnderInvestigation
	StatusResolved
	StatusDismissed
)

var statusNames = [...]string{
	StatusSubmitted:          "Submitted",
	StatusUnderInvestigation: "Under Investigation",
	StatusResolved:           "Resolved",
	StatusDismissed:          "Dismissed",
}

func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

// ParseStatus accepts a status name, case-insensitively, or its number
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if strings.EqualFold(s, name) {
			return Status(i), nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Category classifies what a report is about
type Category uint8

const (
	CategoryCorruption Category = iota
	CategoryFraud
	CategoryEnvironmental
	CategorySafety
	CategoryDiscrimination
	CategoryOther
)

var categoryNames = [...]string{
	CategoryCorruption:     "Corruption",
	CategoryFraud:          "Fraud",
	CategoryEnvironmental:  "Environmental",
	CategorySafety:         "Safety",
	CategoryDiscrimination: "Discrimination",
	CategoryOther:          "Other",
}

func (c Category) Valid() bool {
	return int(c) < len(categoryNames)
}

func (c Category) String() string {
	if !c.Valid() {
		return "Unknown(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

// ParseCategory accepts a category name, case-insensitively, or its number
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return Category(i), nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && Category(n).Valid() {
		return Category(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Report is the public part of a filed report. Its contents stay encrypted
// on-chain and are not returned here.
type Report struct {
	ID           uint32         `json:"id"`
	Status       Status         `json:"status"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	Investigator common.Address `json:"investigator"`
}

// Stats are the ledger-wide report counters
type Stats struct {
	Total    uint32 `json:"total"`
	Resolved uint32 `json:"resolved"`
	Pending  uint32 `json:"pending"`
}

// Submission is the outcome of filing a report
type Submission struct {
	ReportID uint32      `json:"reportId"`
	TxHash   common.Hash `json:"txHash"`
}

// ReportSubmitted is emitted once per filed report
type ReportSubmitted struct {
	ReportID  uint32
	Category  Category
	Timestamp time.Time
	Log       types.Log
}

// ReportStatusChanged is emitted whenever a report's status is updated
type ReportStatusChanged struct {
	ReportID uint32
	Status   Status
	Log      types.Log
}
