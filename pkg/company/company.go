// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package company describes a research subject as held in the registry.
package company

import "strings"

// Listing classes of Company.CorpClass.
const (
	ClassKOSPI  = "Y"
	ClassKOSDAQ = "K"
	ClassKONEX  = "N"
	ClassOther  = "E"
)

// Company is a research subject.
type Company struct {
	// Name is the registered company name.
	Name string `json:"corp_name" yaml:"corp_name"`

	// CorpRegNo is the 13-digit corporate registration number. It is the
	// subject key and the identifier of the FSC sources.
	CorpRegNo string `json:"jurir_no" yaml:"jurir_no"`

	// CorpCode is the 8-digit DART code. Empty when the company does not
	// file disclosures.
	CorpCode string `json:"corp_code,omitempty" yaml:"corp_code,omitempty"`

	// BizRegNo is the 10-digit business registration number.
	BizRegNo string `json:"bizr_no,omitempty" yaml:"bizr_no,omitempty"`

	CorpClass     string `json:"corp_cls,omitempty" yaml:"corp_cls,omitempty"`
	Industry      string `json:"industry,omitempty" yaml:"industry,omitempty"`
	CEO           string `json:"ceo_nm,omitempty" yaml:"ceo_nm,omitempty"`
	Homepage      string `json:"hm_url,omitempty" yaml:"hm_url,omitempty"`
	EmployeeCount int    `json:"emp_cnt,omitempty" yaml:"emp_cnt,omitempty"`
	Address       string `json:"adres,omitempty" yaml:"adres,omitempty"`
	EstablishedAt string `json:"est_dt,omitempty" yaml:"est_dt,omitempty"`
	MainBusiness  string `json:"enp_main_biz_nm,omitempty" yaml:"enp_main_biz_nm,omitempty"`
}

// Key returns the subject key used by stores, caches and run guards.
func (c Company) Key() string {
	if c.CorpRegNo != "" {
		return c.CorpRegNo
	}
	return c.CorpCode
}

// HasDisclosure reports whether the restricted DART source is usable.
func (c Company) HasDisclosure() bool {
	return strings.TrimSpace(c.CorpCode) != ""
}

// Listed reports whether the company trades on an exchange.
func (c Company) Listed() bool {
	switch c.CorpClass {
	case ClassKOSPI, ClassKOSDAQ, ClassKONEX:
		return true
	}
	return false
}

// MarketLabel returns the human-readable listing status.
func (c Company) MarketLabel() string {
	switch c.CorpClass {
	case ClassKOSPI:
		return "KOSPI"
	case ClassKOSDAQ:
		return "KOSDAQ"
	case ClassKONEX:
		return "KONEX"
	}
	if c.HasDisclosure() {
		return "Unlisted (externally audited)"
	}
	return "Unlisted"
}
