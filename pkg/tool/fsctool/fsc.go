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

// Package fsctool reads the Financial Services Commission open data APIs:
// the corporate outline and the summary, balance sheet and income statement
// financials, keyed by corporate registration number.
//
// The financial services are queried without a business year. Rows come
// back in ascending bizYear order, so when the total exceeds one page the
// last page is fetched instead, and only the newest year is kept.
package fsctool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
)

const (
	DefaultFinanceURL = "http://apis.data.go.kr/1160100/service/GetFinaStatInfoService_V2"
	DefaultCorpURL    = "http://apis.data.go.kr/1160100/service/GetCorpBasicInfoService_V2"

	// PageSize is the numOfRows of financial queries.
	PageSize = 100

	resultOK = "00"
)

// ErrNotConfigured is returned when no service key is set.
var ErrNotConfigured = errors.New("fsc is not configured: missing service key")

// APIError is a resultCode other than "00".
type APIError struct {
	Code    string
	Message string
	Op      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fsc %s: code=%s %s", e.Op, e.Code, e.Message)
}

// Config configures the FSC client.
type Config struct {
	ServiceKey string        `yaml:"service_key,omitempty"`
	FinanceURL string        `yaml:"finance_url,omitempty"`
	CorpURL    string        `yaml:"corp_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.FinanceURL == "" {
		c.FinanceURL = DefaultFinanceURL
	}
	if c.CorpURL == "" {
		c.CorpURL = DefaultCorpURL
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Outline is the corporate outline record.
type Outline struct {
	Name           string `json:"corpNm"`
	Representative string `json:"enpRprFnm,omitempty"`
	Address        string `json:"enpBsadr,omitempty"`
	EstablishedAt  string `json:"enpEstbDt,omitempty"`
	MainBusiness   string `json:"enpMainBizNm,omitempty"`
	EmployeeCount  string `json:"enpEmpeCnt,omitempty"`
	BizRegNo       string `json:"bzno,omitempty"`
	SmallBusiness  string `json:"smenpYn,omitempty"`
	Homepage       string `json:"enpHmpgUrl,omitempty"`
}

// Summary is one summary financial statement row. Consolidated and separate
// statements of the same year arrive as two rows.
type Summary struct {
	BizYear          string `json:"bizYear"`
	StatementKind    string `json:"fnclDcdNm,omitempty"`
	Revenue          string `json:"enpSaleAmt,omitempty"`
	OperatingProfit  string `json:"enpBzopPft,omitempty"`
	NetIncome        string `json:"enpCrtmNpf,omitempty"`
	TotalAssets      string `json:"enpTastAmt,omitempty"`
	TotalLiabilities string `json:"enpTdbtAmt,omitempty"`
	TotalEquity      string `json:"enpTcptAmt,omitempty"`
	CurrencyCode     string `json:"curCd,omitempty"`
}

// Account is one line of a balance sheet or income statement.
type Account struct {
	BizYear       string `json:"bizYear"`
	StatementKind string `json:"fnclDcdNm,omitempty"`
	AccountName   string `json:"acitNm"`
	Current       string `json:"crtmAcitAmt,omitempty"`
	Previous      string `json:"pvtrAcitAmt,omitempty"`
	TwoYearsAgo   string `json:"bpvtrAcitAmt,omitempty"`
	CurrencyCode  string `json:"curCd,omitempty"`
}

func (s Summary) year() string { return s.BizYear }
func (a Account) year() string { return a.BizYear }

type yearly interface{ year() string }

type envelope[T any] struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			TotalCount flexInt  `json:"totalCount"`
			Items      items[T] `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// items decodes {"item": [...]}, {"item": {...}} and "" alike.
type items[T any] struct {
	Item []T
}

func (it *items[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var raw struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	item := bytes.TrimSpace(raw.Item)
	switch {
	case len(item) == 0 || bytes.Equal(item, []byte("null")):
		return nil
	case item[0] == '{':
		var one T
		if err := json.Unmarshal(item, &one); err != nil {
			return err
		}
		it.Item = []T{one}
		return nil
	default:
		return json.Unmarshal(item, &it.Item)
	}
}

// flexInt accepts numbers and numeric strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

// Client calls the FSC services.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

// New creates an FSC client. A nil hc gets a client with one network retry.
func New(cfg Config, hc *httpclient.Client) *Client {
	cfg.SetDefaults()
	if hc == nil {
		hc = httpclient.New(
			httpclient.WithName("fsc"),
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithNetworkRetries(1),
		)
	}
	return &Client{cfg: cfg, http: hc}
}

// Configured reports whether a service key is set.
func (c *Client) Configured() bool { return c.cfg.ServiceKey != "" }

// Outline returns the corporate outline, or nil when the registry has no
// record. It works for unlisted companies without a DART code.
func (c *Client) Outline(ctx context.Context, corpRegNo string) (*Outline, error) {
	env, err := fetch[Outline](ctx, c, "outline", c.cfg.CorpURL+"/getCorpOutline_V2", corpRegNo, 1, 1)
	if err != nil {
		return nil, err
	}
	list := env.Response.Body.Items.Item
	if len(list) == 0 {
		slog.Warn("FSC outline not found", "jurir_no", corpRegNo)
		return nil, nil
	}
	return &list[0], nil
}

// Summary returns the newest year's summary statements.
func (c *Client) Summary(ctx context.Context, corpRegNo string) ([]Summary, error) {
	return latest[Summary](ctx, c, "summary", c.cfg.FinanceURL+"/getSummFinaStat_V2", corpRegNo)
}

// BalanceSheet returns the newest year's balance sheet accounts.
func (c *Client) BalanceSheet(ctx context.Context, corpRegNo string) ([]Account, error) {
	return latest[Account](ctx, c, "balance sheet", c.cfg.FinanceURL+"/getBs_V2", corpRegNo)
}

// IncomeStatement returns the newest year's income statement accounts.
func (c *Client) IncomeStatement(ctx context.Context, corpRegNo string) ([]Account, error) {
	return latest[Account](ctx, c, "income statement", c.cfg.FinanceURL+"/getIncoStat_V2", corpRegNo)
}

func latest[T yearly](ctx context.Context, c *Client, op, endpoint, corpRegNo string) ([]T, error) {
	env, err := fetch[T](ctx, c, op, endpoint, corpRegNo, 1, PageSize)
	if err != nil {
		return nil, err
	}
	list := env.Response.Body.Items.Item

	if total := int(env.Response.Body.TotalCount); total > PageSize {
		lastPage := (total + PageSize - 1) / PageSize
		slog.Debug("FSC fetching last page", "op", op, "total", total, "page", lastPage)
		env, err = fetch[T](ctx, c, op, endpoint, corpRegNo, lastPage, PageSize)
		if err != nil {
			return nil, err
		}
		list = env.Response.Body.Items.Item
	}

	out := newestYear(list)
	slog.Debug("FSC call succeeded", "op", op, "jurir_no", corpRegNo, "items", len(out))
	return out, nil
}

// newestYear keeps the rows of the greatest bizYear, in order.
func newestYear[T yearly](list []T) []T {
	maxYear := ""
	for _, it := range list {
		if it.year() > maxYear {
			maxYear = it.year()
		}
	}
	out := []T{}
	for _, it := range list {
		if it.year() == maxYear {
			out = append(out, it)
		}
	}
	return out
}

func fetch[T any](ctx context.Context, c *Client, op, endpoint, corpRegNo string, page, rows int) (*envelope[T], error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("serviceKey", c.cfg.ServiceKey)
	q.Set("resultType", "json")
	q.Set("numOfRows", strconv.Itoa(rows))
	q.Set("pageNo", strconv.Itoa(page))
	q.Set("crno", corpRegNo)

	var env envelope[T]
	if err := c.http.GetJSON(ctx, endpoint, q, nil, &env); err != nil {
		return nil, fmt.Errorf("fsc %s: %w", op, err)
	}
	if h := env.Response.Header; h.ResultCode != resultOK {
		return nil, &APIError{Code: h.ResultCode, Message: h.ResultMsg, Op: op}
	}
	return &env, nil
}
