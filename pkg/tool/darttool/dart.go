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

// Package darttool reads financial statements and executive rosters from the
// DART electronic disclosure OpenAPI.
//
// DART answers every call with a status code:
//   - "000" success
//   - "013" no data for the query, reported as ErrNoData
//   - anything else is an error carrying the API message
package darttool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
)

// DefaultBaseURL is the DART OpenAPI root.
const DefaultBaseURL = "https://opendart.fss.or.kr/api"

const (
	statusOK     = "000"
	statusNoData = "013"

	pingCorpCode = "00126380"
)

// Report codes.
const (
	ReportAnnual   = "11011"
	ReportHalf     = "11012"
	ReportQuarter1 = "11013"
	ReportQuarter3 = "11014"
)

var (
	// ErrNoData is returned when DART has nothing for the query.
	ErrNoData = errors.New("dart: no data")

	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("dart is not configured: missing API key")
)

// APIError is a DART status other than success or no data.
type APIError struct {
	Status  string
	Message string
	Op      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dart %s: status=%s %s", e.Op, e.Status, e.Message)
}

// Config configures the DART client.
type Config struct {
	APIKey  string        `yaml:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// FinanceItem is one account line of the single-company statement.
type FinanceItem struct {
	AccountName        string `json:"account_nm"`
	StatementDivision  string `json:"fs_div,omitempty"`
	StatementName      string `json:"fs_nm,omitempty"`
	SheetName          string `json:"sj_nm,omitempty"`
	CurrentTermName    string `json:"thstrm_nm,omitempty"`
	CurrentTermAmount  string `json:"thstrm_amount,omitempty"`
	PreviousTermName   string `json:"frmtrm_nm,omitempty"`
	PreviousTermAmount string `json:"frmtrm_amount,omitempty"`
	TwoTermsAgoName    string `json:"bfefrmtrm_nm,omitempty"`
	TwoTermsAgoAmount  string `json:"bfefrmtrm_amount,omitempty"`
	Currency           string `json:"currency,omitempty"`
	BusinessYear       string `json:"bsns_year,omitempty"`
	ReceiptNo          string `json:"rcept_no,omitempty"`
	StockCode          string `json:"stock_code,omitempty"`
	DisplayOrder       string `json:"ord,omitempty"`
}

// Executive is one registered officer.
type Executive struct {
	Name                string `json:"nm"`
	Gender              string `json:"sexdstn,omitempty"`
	BirthMonth          string `json:"birth_ym,omitempty"`
	Position            string `json:"ofcps,omitempty"`
	Registered          string `json:"rgist_exctv_at,omitempty"`
	FullTime            string `json:"fte_at,omitempty"`
	Responsibility      string `json:"chrg_job,omitempty"`
	MainCareer          string `json:"main_career,omitempty"`
	MajorHolderRelation string `json:"mxmm_shrholdr_relate,omitempty"`
	TenurePeriod        string `json:"hffc_pd,omitempty"`
	TenureEnd           string `json:"tenure_end_on,omitempty"`
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []T    `json:"list"`
}

// Client calls the DART OpenAPI.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

// New creates a DART client. A nil hc gets a client with one network retry.
func New(cfg Config, hc *httpclient.Client) *Client {
	cfg.SetDefaults()
	if hc == nil {
		hc = httpclient.New(
			httpclient.WithName("dart"),
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithNetworkRetries(1),
		)
	}
	return &Client{cfg: cfg, http: hc}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// Finance returns the consolidated single-company statement for a year.
func (c *Client) Finance(ctx context.Context, corpCode, year, reportCode string) ([]FinanceItem, error) {
	q := c.query(corpCode, year, reportCode)
	q.Set("fs_div", "CFS")
	return get[FinanceItem](ctx, c, "finance", "/fnlttSinglAcnt.json", q)
}

// Executives returns the executive roster filed with a report.
func (c *Client) Executives(ctx context.Context, corpCode, year, reportCode string) ([]Executive, error) {
	return get[Executive](ctx, c, "executives", "/exctvSttus.json", c.query(corpCode, year, reportCode))
}

// Ping checks the key against the company endpoint using a well-known
// filer.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	q := url.Values{}
	q.Set("crtfc_key", c.cfg.APIKey)
	q.Set("corp_code", pingCorpCode)

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/company.json", q, nil, &resp); err != nil {
		return fmt.Errorf("dart ping: %w", err)
	}
	if resp.Status != statusOK {
		return &APIError{Status: resp.Status, Message: resp.Message, Op: "ping"}
	}
	return nil
}

func (c *Client) query(corpCode, year, reportCode string) url.Values {
	if reportCode == "" {
		reportCode = ReportAnnual
	}
	q := url.Values{}
	q.Set("crtfc_key", c.cfg.APIKey)
	q.Set("corp_code", corpCode)
	q.Set("bsns_year", year)
	q.Set("reprt_code", reportCode)
	return q
}

func get[T any](ctx context.Context, c *Client, op, path string, q url.Values) ([]T, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var env envelope[T]
	if err := c.http.GetJSON(ctx, c.cfg.BaseURL+path, q, nil, &env); err != nil {
		return nil, fmt.Errorf("dart %s: %w", op, err)
	}

	switch env.Status {
	case statusOK:
		slog.Debug("DART call succeeded", "op", op, "corp_code", q.Get("corp_code"), "items", len(env.List))
		return env.List, nil
	case statusNoData:
		slog.Warn("DART returned no data", "op", op, "corp_code", q.Get("corp_code"), "year", q.Get("bsns_year"))
		return nil, ErrNoData
	default:
		return nil, &APIError{Status: env.Status, Message: env.Message, Op: op}
	}
}
