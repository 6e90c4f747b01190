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

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/workflow"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialects.
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

const companyColumns = `corp_reg_no, corp_code, biz_reg_no, name, corp_class, industry, ceo, homepage,
employee_count, address, established_at, main_business`

const sectionColumns = `id, conversation_id, subject_key, workflow_key, section_key, title, content, status, version, updated_at`

// SQL is a Store on database/sql for PostgreSQL, MySQL and SQLite.
type SQL struct {
	db      *sql.DB
	dialect string
}

var _ Store = (*SQL)(nil)

// NewSQL wraps db and creates the schema when missing. The connection is
// owned by the caller.
func NewSQL(ctx context.Context, db *sql.DB, dialect string) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case DialectPostgres, DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQL{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	longText := "TEXT"
	if s.dialect == DialectMySQL {
		longText = "LONGTEXT"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(64) PRIMARY KEY,
    subject_key VARCHAR(64) NOT NULL,
    workflow_key VARCHAR(64) NOT NULL,
    messages ` + longText + ` NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (subject_key, workflow_key)
)`,
		`CREATE TABLE IF NOT EXISTS sections (
    id VARCHAR(64) PRIMARY KEY,
    conversation_id VARCHAR(64) NOT NULL,
    subject_key VARCHAR(64) NOT NULL,
    workflow_key VARCHAR(64) NOT NULL,
    section_key VARCHAR(128) NOT NULL,
    title VARCHAR(255) NOT NULL,
    content ` + longText + ` NOT NULL,
    status VARCHAR(16) NOT NULL,
    version INTEGER NOT NULL,
    seq BIGINT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (subject_key, workflow_key, section_key)
)`,
		`CREATE TABLE IF NOT EXISTS companies (
    corp_reg_no VARCHAR(13) PRIMARY KEY,
    corp_code VARCHAR(8) NOT NULL,
    biz_reg_no VARCHAR(10) NOT NULL,
    name VARCHAR(255) NOT NULL,
    corp_class VARCHAR(2) NOT NULL,
    industry VARCHAR(255) NOT NULL,
    ceo VARCHAR(255) NOT NULL,
    homepage VARCHAR(512) NOT NULL,
    employee_count INTEGER NOT NULL,
    address VARCHAR(512) NOT NULL,
    established_at VARCHAR(16) NOT NULL,
    main_business VARCHAR(512) NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS pinned_companies (
    id VARCHAR(64) PRIMARY KEY,
    corp_reg_no VARCHAR(13) NOT NULL UNIQUE,
    company ` + longText + ` NOT NULL,
    seq BIGINT NOT NULL,
    pinned_at TIMESTAMP NOT NULL
)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// q rewrites ? placeholders for the dialect.
func (s *SQL) q(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (s *SQL) UpsertConversation(ctx context.Context, c *Conversation) (string, error) {
	if c == nil || c.SubjectKey == "" || c.WorkflowKey == "" {
		return "", fmt.Errorf("conversation requires subject and workflow keys")
	}
	data, err := json.Marshal(c.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to encode messages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var id string
	err = tx.QueryRowContext(ctx,
		s.q(`SELECT id FROM conversations WHERE subject_key = ? AND workflow_key = ?`),
		c.SubjectKey, c.WorkflowKey,
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO conversations (id, subject_key, workflow_key, messages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
			id, c.SubjectKey, c.WorkflowKey, string(data), now, now,
		)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			s.q(`UPDATE conversations SET messages = ?, updated_at = ? WHERE id = ?`),
			string(data), now, id,
		)
	}
	if err != nil {
		return "", fmt.Errorf("failed to upsert conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit conversation: %w", err)
	}
	return id, nil
}

func (s *SQL) GetConversation(ctx context.Context, subjectKey, workflowKey string) (*Conversation, error) {
	var (
		c    = Conversation{SubjectKey: subjectKey, WorkflowKey: workflowKey}
		data string
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, messages, created_at, updated_at FROM conversations WHERE subject_key = ? AND workflow_key = ?`),
		subjectKey, workflowKey,
	).Scan(&c.ID, &data, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s/%s: %w", subjectKey, workflowKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &c, nil
}

func (s *SQL) DeleteConversation(ctx context.Context, subjectKey, workflowKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM sections WHERE subject_key = ? AND workflow_key = ?`), subjectKey, workflowKey); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM conversations WHERE subject_key = ? AND workflow_key = ?`), subjectKey, workflowKey); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return tx.Commit()
}

func (s *SQL) UpsertSection(ctx context.Context, in SectionInput) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var (
		id      string
		version int
	)
	err = tx.QueryRowContext(ctx,
		s.q(`SELECT id, version FROM sections WHERE subject_key = ? AND workflow_key = ? AND section_key = ?`),
		in.SubjectKey, in.WorkflowKey, in.SectionKey,
	).Scan(&id, &version)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO sections (`+sectionColumns+`, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, in.ConversationID, in.SubjectKey, in.WorkflowKey, in.SectionKey, in.Title, in.Content,
			string(StatusDone), 1, now, now.UnixNano(),
		)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			s.q(`UPDATE sections SET conversation_id = ?, title = ?, content = ?, status = ?, version = ?, updated_at = ? WHERE id = ?`),
			in.ConversationID, in.Title, in.Content, string(StatusDone), version+1, now, id,
		)
	}
	if err != nil {
		return "", fmt.Errorf("failed to upsert section %s: %w", in.SectionKey, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit section %s: %w", in.SectionKey, err)
	}
	return id, nil
}

func (s *SQL) InitSections(ctx context.Context, conversationID, subjectKey, workflowKey string) error {
	def, ok := workflow.Lookup(workflow.ID(workflowKey))
	if !ok {
		return nil
	}

	var insert string
	switch s.dialect {
	case DialectPostgres:
		insert = `INSERT INTO sections (` + sectionColumns + `, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (subject_key, workflow_key, section_key) DO NOTHING`
	case DialectMySQL:
		insert = `INSERT IGNORE INTO sections (` + sectionColumns + `, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	default:
		insert = `INSERT OR IGNORE INTO sections (` + sectionColumns + `, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	now := time.Now().UTC()
	for i, spec := range def.Sections {
		_, err := s.db.ExecContext(ctx, s.q(insert),
			uuid.NewString(), conversationID, subjectKey, workflowKey, spec.Key, spec.Title, "",
			string(StatusEmpty), 0, now, now.UnixNano()+int64(i),
		)
		if err != nil {
			return fmt.Errorf("failed to seed section %s: %w", spec.Key, err)
		}
	}
	slog.Debug("Sections initialized", "subject", subjectKey, "workflow", workflowKey, "count", len(def.Sections))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (SectionRecord, error) {
	var (
		r      SectionRecord
		status string
	)
	err := row.Scan(&r.ID, &r.ConversationID, &r.SubjectKey, &r.WorkflowKey, &r.SectionKey,
		&r.Title, &r.Content, &status, &r.Version, &r.UpdatedAt)
	r.Status = Status(status)
	return r, err
}

func (s *SQL) ListSections(ctx context.Context, subjectKey, workflowKey string) ([]SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+sectionColumns+` FROM sections WHERE subject_key = ? AND workflow_key = ? ORDER BY seq`),
		subjectKey, workflowKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var out []SectionRecord
	for rows.Next() {
		r, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) GetSection(ctx context.Context, subjectKey, workflowKey, sectionKey string) (*SectionRecord, error) {
	r, err := scanSection(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+sectionColumns+` FROM sections WHERE subject_key = ? AND workflow_key = ? AND section_key = ?`),
		subjectKey, workflowKey, sectionKey,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %s: %w", sectionKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return &r, nil
}

func (s *SQL) SetSectionStatus(ctx context.Context, subjectKey, workflowKey, sectionKey string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid section status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE sections SET status = ?, updated_at = ? WHERE subject_key = ? AND workflow_key = ? AND section_key = ?`),
		string(status), time.Now().UTC(), subjectKey, workflowKey, sectionKey,
	)
	if err != nil {
		return fmt.Errorf("failed to set section status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("section %s: %w", sectionKey, ErrNotFound)
	}
	return nil
}

func (s *SQL) UpsertCompany(ctx context.Context, c company.Company) error {
	if c.CorpRegNo == "" {
		return fmt.Errorf("company %q has no corporate registration number", c.Name)
	}

	var query string
	switch s.dialect {
	case DialectPostgres:
		query = `INSERT INTO companies (` + companyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (corp_reg_no) DO UPDATE SET corp_code = EXCLUDED.corp_code, biz_reg_no = EXCLUDED.biz_reg_no,
name = EXCLUDED.name, corp_class = EXCLUDED.corp_class, industry = EXCLUDED.industry, ceo = EXCLUDED.ceo,
homepage = EXCLUDED.homepage, employee_count = EXCLUDED.employee_count, address = EXCLUDED.address,
established_at = EXCLUDED.established_at, main_business = EXCLUDED.main_business`
	case DialectMySQL:
		query = `INSERT INTO companies (` + companyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE corp_code = VALUES(corp_code), biz_reg_no = VALUES(biz_reg_no), name = VALUES(name),
corp_class = VALUES(corp_class), industry = VALUES(industry), ceo = VALUES(ceo), homepage = VALUES(homepage),
employee_count = VALUES(employee_count), address = VALUES(address), established_at = VALUES(established_at),
main_business = VALUES(main_business)`
	default:
		query = `INSERT OR REPLACE INTO companies (` + companyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := s.db.ExecContext(ctx, s.q(query),
		c.CorpRegNo, c.CorpCode, c.BizRegNo, c.Name, c.CorpClass, c.Industry, c.CEO, c.Homepage,
		c.EmployeeCount, c.Address, c.EstablishedAt, c.MainBusiness,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company %s: %w", c.CorpRegNo, err)
	}
	return nil
}

func scanCompany(row rowScanner) (company.Company, error) {
	var c company.Company
	err := row.Scan(&c.CorpRegNo, &c.CorpCode, &c.BizRegNo, &c.Name, &c.CorpClass, &c.Industry, &c.CEO,
		&c.Homepage, &c.EmployeeCount, &c.Address, &c.EstablishedAt, &c.MainBusiness)
	return c, err
}

func (s *SQL) getCompanyBy(ctx context.Context, column, value string) (*company.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+companyColumns+` FROM companies WHERE `+column+` = ?`), value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s=%s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

func (s *SQL) GetCompany(ctx context.Context, corpRegNo string) (*company.Company, error) {
	return s.getCompanyBy(ctx, "corp_reg_no", corpRegNo)
}

func (s *SQL) GetCompanyByCorpCode(ctx context.Context, corpCode string) (*company.Company, error) {
	if corpCode == "" {
		return nil, fmt.Errorf("company with empty corp code: %w", ErrNotFound)
	}
	return s.getCompanyBy(ctx, "corp_code", corpCode)
}

func (s *SQL) searchByPattern(ctx context.Context, pattern string, limit int) ([]company.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+companyColumns+` FROM companies WHERE name LIKE ? ORDER BY corp_class DESC, name LIMIT ?`),
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search companies: %w", err)
	}
	defer rows.Close()

	var out []company.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQL) SearchCompanies(ctx context.Context, keyword string, limit int) ([]company.Company, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	prefix, err := s.searchByPattern(ctx, keyword+"%", limit)
	if err != nil {
		return nil, err
	}
	if len(prefix) >= prefixTopUp {
		return prefix, nil
	}
	contains, err := s.searchByPattern(ctx, "%"+keyword+"%", DefaultSearchLimit)
	if err != nil {
		return nil, err
	}
	return mergeSearch(prefix, contains, limit), nil
}

func (s *SQL) CompanyStats(ctx context.Context) (CompanyStats, error) {
	stats := CompanyStats{ByClass: map[string]int{}}
	var withCode sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(CASE WHEN corp_code <> '' THEN 1 ELSE 0 END) FROM companies`,
	).Scan(&stats.Total, &withCode)
	if err != nil {
		return stats, fmt.Errorf("failed to count companies: %w", err)
	}
	stats.WithCorpCode = int(withCode.Int64)

	rows, err := s.db.QueryContext(ctx,
		`SELECT corp_class, COUNT(*) FROM companies WHERE corp_class <> '' GROUP BY corp_class`)
	if err != nil {
		return stats, fmt.Errorf("failed to count company classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			class string
			n     int
		)
		if err := rows.Scan(&class, &n); err != nil {
			return stats, fmt.Errorf("failed to scan company class: %w", err)
		}
		stats.ByClass[class] = n
	}
	return stats, rows.Err()
}

func (s *SQL) AddPin(ctx context.Context, c company.Company) (string, error) {
	if c.CorpRegNo == "" {
		return "", fmt.Errorf("company %q has no corporate registration number", c.Name)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode company: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		s.q(`SELECT id FROM pinned_companies WHERE corp_reg_no = ?`), c.CorpRegNo,
	).Scan(&id)
	switch {
	case err == nil:
		slog.Debug("Company already pinned", "company", c.Name)
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to look up pin: %w", err)
	}

	now := time.Now().UTC()
	id = uuid.NewString()
	_, err = tx.ExecContext(ctx,
		s.q(`INSERT INTO pinned_companies (id, corp_reg_no, company, seq, pinned_at) VALUES (?, ?, ?, ?, ?)`),
		id, c.CorpRegNo, string(data), now.UnixNano(), now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to pin company %s: %w", c.CorpRegNo, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit pin: %w", err)
	}
	return id, nil
}

func (s *SQL) RemovePin(ctx context.Context, corpRegNo string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM pinned_companies WHERE corp_reg_no = ?`), corpRegNo); err != nil {
		return fmt.Errorf("failed to unpin company %s: %w", corpRegNo, err)
	}
	return nil
}

func (s *SQL) ListPins(ctx context.Context) ([]Pin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, company, pinned_at FROM pinned_companies ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	defer rows.Close()

	var out []Pin
	for rows.Next() {
		var (
			p    Pin
			data string
		)
		if err := rows.Scan(&p.ID, &data, &p.PinnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &p.Company); err != nil {
			return nil, fmt.Errorf("failed to decode pinned company: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQL) IsPinned(ctx context.Context, corpRegNo string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*) FROM pinned_companies WHERE corp_reg_no = ?`), corpRegNo,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check pin: %w", err)
	}
	return n > 0, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection belongs to the pool that opened it.
func (s *SQL) Close() error { return nil }
