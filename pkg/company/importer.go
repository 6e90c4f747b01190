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

package company

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoRegNo is returned when a company list has no registration number
// column.
var ErrNoRegNo = errors.New("company list has no jurir_no column")

// headerAliases maps accepted column headers to field names. The JSON names
// of Company are accepted as-is.
var headerAliases = map[string]string{
	"법인등록번호":  "jurir_no",
	"회사명":     "corp_name",
	"법인명":     "corp_name",
	"고유번호":    "corp_code",
	"사업자등록번호": "bizr_no",
	"법인구분":    "corp_cls",
	"업종":      "industry",
	"대표자명":    "ceo_nm",
	"홈페이지":    "hm_url",
	"주소":      "adres",
	"설립일":     "est_dt",
}

var setters = map[string]func(*Company, string){
	"corp_name":       func(c *Company, v string) { c.Name = v },
	"jurir_no":        func(c *Company, v string) { c.CorpRegNo = digits(v) },
	"corp_code":       func(c *Company, v string) { c.CorpCode = v },
	"bizr_no":         func(c *Company, v string) { c.BizRegNo = digits(v) },
	"corp_cls":        func(c *Company, v string) { c.CorpClass = v },
	"industry":        func(c *Company, v string) { c.Industry = v },
	"ceo_nm":          func(c *Company, v string) { c.CEO = v },
	"hm_url":          func(c *Company, v string) { c.Homepage = v },
	"emp_cnt":         func(c *Company, v string) { c.EmployeeCount, _ = strconv.Atoi(strings.ReplaceAll(v, ",", "")) },
	"adres":           func(c *Company, v string) { c.Address = v },
	"est_dt":          func(c *Company, v string) { c.EstablishedAt = v },
	"enp_main_biz_nm": func(c *Company, v string) { c.MainBusiness = v },
}

// ReadCSV parses a company list whose first row is a header.
func ReadCSV(r io.Reader) ([]Company, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return FromRows(rows)
}

// ReadXLSX parses the first sheet, or the named one, of a workbook.
func ReadXLSX(r io.Reader, sheet string) ([]Company, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return FromRows(rows)
}

// FromRows maps a header row and data rows to companies. Unknown columns
// are ignored; rows without a registration number are skipped.
func FromRows(rows [][]string) ([]Company, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make([]func(*Company, string), len(rows[0]))
	hasRegNo := false
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		columns[i] = setters[name]
		hasRegNo = hasRegNo || name == "jurir_no"
	}
	if !hasRegNo {
		return nil, ErrNoRegNo
	}

	out := make([]Company, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var c Company
		for i, cell := range row {
			if i < len(columns) && columns[i] != nil {
				columns[i](&c, strings.TrimSpace(cell))
			}
		}
		if c.CorpRegNo == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// digits strips the separators of formatted registration numbers.
func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
