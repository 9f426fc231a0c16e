// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reporting

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABIJSON is the interface of the anonymous reporting contract
const ABIJSON = `[
	{"type":"function","name":"submitAnonymousReport","stateMutability":"nonpayable",
		"inputs":[{"name":"_category","type":"uint8"},{"name":"_isAnonymous","type":"bool"}],
		"outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"assignInvestigator","stateMutability":"nonpayable",
		"inputs":[{"name":"_reportId","type":"uint32"},{"name":"_investigator","type":"address"}],
		"outputs":[]},
	{"type":"function","name":"updateReportStatus","stateMutability":"nonpayable",
		"inputs":[{"name":"_reportId","type":"uint32"},{"name":"_newStatus","type":"uint8"}],
		"outputs":[]},
	{"type":"function","name":"addInvestigationNotes","stateMutability":"nonpayable",
		"inputs":[{"name":"_reportId","type":"uint32"},{"name":"_notes","type":"string"}],
		"outputs":[]},
	{"type":"function","name":"addInvestigator","stateMutability":"nonpayable",
		"inputs":[{"name":"_investigator","type":"address"}],
		"outputs":[]},
	{"type":"function","name":"removeInvestigator","stateMutability":"nonpayable",
		"inputs":[{"name":"_investigator","type":"address"}],
		"outputs":[]},
	{"type":"function","name":"getReportBasicInfo","stateMutability":"view",
		"inputs":[{"name":"_reportId","type":"uint32"}],
		"outputs":[
			{"name":"status","type":"uint8"},
			{"name":"submissionTime","type":"uint256"},
			{"name":"investigator","type":"address"},
			{"name":"exists","type":"bool"}
		]},
	{"type":"function","name":"getSystemStats","stateMutability":"view",
		"inputs":[],
		"outputs":[
			{"name":"total","type":"uint32"},
			{"name":"resolved","type":"uint32"},
			{"name":"pending","type":"uint32"}
		]},
	{"type":"function","name":"isAuthorizedInvestigator","stateMutability":"view",
		"inputs":[{"name":"_user","type":"address"}],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"authority","stateMutability":"view",
		"inputs":[],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"ReportSubmitted","anonymous":false,"inputs":[
		{"name":"reportId","type":"uint32","indexed":true},
		{"name":"category","type":"uint8","indexed":false},
		{"name":"timestamp","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"ReportStatusChanged","anonymous":false,"inputs":[
		{"name":"reportId","type":"uint32","indexed":true},
		{"name":"newStatus","type":"uint8","indexed":false}
	]}
]`

const (
	methodSubmit             = "submitAnonymousReport"
	methodAssign             = "assignInvestigator"
	methodUpdateStatus       = "updateReportStatus"
	methodAddNotes           = "addInvestigationNotes"
	methodAddInvestigator    = "addInvestigator"
	methodRemoveInvestigator = "removeInvestigator"
	methodReportInfo         = "getReportBasicInfo"
	methodStats              = "getSystemStats"
	methodIsInvestigator     = "isAuthorizedInvestigator"
	methodAuthority          = "authority"

	EventReportSubmitted     = "ReportSubmitted"
	EventReportStatusChanged = "ReportStatusChanged"
)

// ParseABI returns the parsed contract interface
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ABIJSON))
}
