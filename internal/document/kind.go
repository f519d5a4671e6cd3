package document

import (
	"path/filepath"
	"strings"
)

// Kind identifies the handler a file is routed to. Unsupported is a real,
// tested branch rather than an implicit fallthrough.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindDOCX
	KindPPTX
	KindCSV
	KindXLSX
	KindMarkdown
)

const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMECSV      = "text/csv"
	MIMEXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEMarkdown = "text/markdown"
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindPPTX:
		return "pptx"
	case KindCSV:
		return "csv"
	case KindXLSX:
		return "xlsx"
	case KindMarkdown:
		return "markdown"
	default:
		return "unsupported"
	}
}

// KindFromMIME resolves the declared MIME type, falling back to the file
// extension when the type is missing or generic.
func KindFromMIME(mimeType, filename string) Kind {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case MIMEPDF:
		return KindPDF
	case MIMEDOCX:
		return KindDOCX
	case MIMEPPTX:
		return KindPPTX
	case MIMECSV:
		return KindCSV
	case MIMEXLSX:
		return KindXLSX
	case MIMEMarkdown:
		return KindMarkdown
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".pptx":
		return KindPPTX
	case ".csv":
		return KindCSV
	case ".xlsx":
		return KindXLSX
	case ".md", ".markdown":
		return KindMarkdown
	default:
		return KindUnsupported
	}
}
