package document

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"docchat/internal/models"
)

// File is an uploaded blob with its declared type.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Load converts a single file into extracted documents. Unsupported kinds
// return an empty result without error. Loading is purely functional; nothing
// is retained between calls.
func Load(file File) ([]models.Document, error) {
	switch KindFromMIME(file.MIME, file.Name) {
	case KindPDF:
		return loadPDF(file)
	case KindDOCX:
		return loadDOCX(file)
	case KindPPTX:
		return loadPPTX(file)
	case KindCSV:
		return loadCSV(file)
	case KindXLSX:
		return loadXLSX(file)
	case KindMarkdown:
		return loadMarkdown(file)
	}
	// KindUnsupported: nothing to extract
	return nil, nil
}

// LoadAll loads a batch of files. Unsupported files are skipped silently and
// a file that fails to parse is skipped with a warning so the rest of the
// batch still goes through.
func LoadAll(files []File) []models.Document {
	var docs []models.Document
	for _, f := range files {
		kind := KindFromMIME(f.MIME, f.Name)
		if kind == KindUnsupported {
			log.Debug().Str("file", f.Name).Str("mime", f.MIME).Msg("Skipping unsupported file type")
			continue
		}
		loaded, err := Load(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name).Str("kind", kind.String()).Msg("Skipping file that failed to parse")
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs
}

// loadPDF splits the document page by page; a page that fails text extraction
// is dropped, not fatal.
func loadPDF(file File) ([]models.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return nil, fmt.Errorf("reading pdf %s: %w", file.Name, err)
	}

	var docs []models.Document
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name).Int("page", i).Msg("Skipping unreadable PDF page")
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, models.Document{
			Text:   pageText,
			Source: file.Name,
			Page:   i,
		})
	}
	return docs, nil
}

func loadDOCX(file File) ([]models.Document, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return nil, fmt.Errorf("reading docx %s: %w", file.Name, err)
	}
	defer r.Close()

	// GetContent returns the raw document.xml markup; paragraph boundaries are
	// </w:p> and text runs are <w:t> elements.
	content := r.Editable().GetContent()
	var paragraphs []string
	for _, part := range strings.Split(content, "</w:p>") {
		p := strings.TrimSpace(extractTagText(part, "w:t"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []models.Document{{
		Text:   strings.Join(paragraphs, "\n\n"),
		Source: file.Name,
		Page:   1,
	}}, nil
}

func loadPPTX(file File) ([]models.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return nil, fmt.Errorf("reading pptx %s: %w", file.Name, err)
	}

	var docs []models.Document
	for _, zf := range zr.File {
		if !strings.HasPrefix(zf.Name, "ppt/slides/slide") || !strings.HasSuffix(zf.Name, ".xml") {
			continue
		}
		// The slide number comes from the part name; zip entry order is not
		// guaranteed to follow it.
		slideNum, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(zf.Name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := strings.TrimSpace(extractTagText(string(data), "a:t"))
		if slideText == "" {
			continue
		}
		docs = append(docs, models.Document{
			Text:   slideText,
			Source: file.Name,
			Page:   slideNum,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Page < docs[j].Page })
	return docs, nil
}

// loadCSV serializes the full table row by row. One of the upstream scripts
// concatenated column-wise sums of string casts instead, which garbles the
// text; that behaviour is deliberately not reproduced.
func loadCSV(file File) ([]models.Document, error) {
	r := csv.NewReader(bytes.NewReader(file.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", file.Name, err)
	}

	var text strings.Builder
	for _, record := range records {
		text.WriteString(strings.Join(record, ", "))
		text.WriteString("\n")
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, nil
	}
	return []models.Document{{
		Text:   text.String(),
		Source: file.Name,
		Page:   1,
	}}, nil
}

func loadXLSX(file File) ([]models.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("reading xlsx %s: %w", file.Name, err)
	}
	defer f.Close()

	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "Sheet: "+sheetName {
			continue
		}
		docs = append(docs, models.Document{
			Text:   text.String(),
			Source: file.Name,
			Page:   sheetNum + 1,
		})
	}
	return docs, nil
}

func loadMarkdown(file File) ([]models.Document, error) {
	text := markdownToText(file.Data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []models.Document{{
		Text:   text,
		Source: file.Name,
		Page:   1,
	}}, nil
}

// extractTagText collects the character content of every <tag>...</tag>
// element in an OOXML fragment. The opening tag may carry attributes.
func extractTagText(xmlContent, tag string) string {
	var text strings.Builder
	open := "<" + tag
	closing := "</" + tag + ">"
	rest := xmlContent
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			break
		}
		rest = rest[i+len(open):]
		if rest == "" {
			break
		}
		// reject prefix matches like <w:tbl> when looking for <w:t>
		if c := rest[0]; c != '>' && c != ' ' && c != '/' {
			continue
		}
		j := strings.Index(rest, ">")
		if j < 0 {
			break
		}
		if strings.HasSuffix(rest[:j], "/") {
			rest = rest[j+1:]
			continue
		}
		rest = rest[j+1:]
		k := strings.Index(rest, closing)
		if k < 0 {
			break
		}
		text.WriteString(unescapeXML(rest[:k]))
		text.WriteString(" ")
		rest = rest[k+len(closing):]
	}
	return text.String()
}

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
