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

package webtool

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

type docKind string

const (
	kindHTML        docKind = "html"
	kindText        docKind = "text"
	kindPDF         docKind = "pdf"
	kindDOCX        docKind = "docx"
	kindXLSX        docKind = "xlsx"
	kindUnsupported docKind = ""
)

const maxSheetCells = 1000

var blankLines = regexp.MustCompile(`\n{3,}`)

// detectKind picks an extractor from the content type, falling back to the
// URL extension for generic binary types.
func detectKind(contentType, urlPath string) docKind {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return kindHTML
	case "text/plain":
		return kindText
	case "application/pdf":
		return kindPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return kindDOCX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return kindXLSX
	case "", "application/octet-stream", "binary/octet-stream":
		switch strings.ToLower(path.Ext(urlPath)) {
		case ".pdf":
			return kindPDF
		case ".docx":
			return kindDOCX
		case ".xlsx":
			return kindXLSX
		case ".html", ".htm":
			return kindHTML
		case ".txt":
			return kindText
		}
	}
	return kindUnsupported
}

func extract(ctx context.Context, kind docKind, body []byte, pageURL *url.URL) (string, string, error) {
	switch kind {
	case kindHTML:
		return extractHTML(body, pageURL)
	case kindText:
		return "", strings.TrimSpace(string(body)), nil
	case kindPDF:
		text, err := extractPDF(ctx, body)
		return path.Base(pageURL.Path), text, err
	case kindDOCX:
		text, err := extractDOCX(body)
		return path.Base(pageURL.Path), text, err
	case kindXLSX:
		text, err := extractXLSX(ctx, body)
		return path.Base(pageURL.Path), text, err
	default:
		return "", "", fmt.Errorf("no extractor for %q", kind)
	}
}

func extractHTML(body []byte, pageURL *url.URL) (string, string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", "", err
	}
	text := blankLines.ReplaceAllString(strings.TrimSpace(article.TextContent), "\n\n")
	return strings.TrimSpace(article.Title), text, nil
}

func extractPDF(ctx context.Context, body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func extractDOCX(body []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return stripXMLTags(doc.Editable().GetContent()), nil
}

var xmlTag = regexp.MustCompile(`<[^>]+>`)

// stripXMLTags reduces raw document.xml content to its text runs.
func stripXMLTags(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = xmlTag.ReplaceAllString(s, "")
	return blankLines.ReplaceAllString(strings.TrimSpace(s), "\n\n")
}

func extractXLSX(ctx context.Context, body []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Sheet: %s (read failed: %v) ---", sheet, err))
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "--- Sheet: %s ---\n", sheet)
		cells := 0
	rowLoop:
		for _, row := range rows {
			var values []string
			for _, cell := range row {
				if cells >= maxSheetCells {
					sb.WriteString("... (truncated)\n")
					break rowLoop
				}
				values = append(values, strings.TrimSpace(cell))
				cells++
			}
			if line := strings.TrimRight(strings.Join(values, " | "), " |"); line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
		parts = append(parts, strings.TrimSpace(sb.String()))
	}
	return strings.Join(parts, "\n\n"), nil
}
