package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	maxDocxTables  = 5
	maxXlsxSheets  = 5
	maxXlsxRows    = 50
	maxPptxSlides  = 20
	docxDocument   = "word/document.xml"
	ooxmlCoreProps = "docProps/core.xml"
	pptxSlideDir   = "ppt/slides/"
)

// coreProperties is the OOXML docProps/core.xml subset used in summaries.
// Unmarshalling by local name tolerates the dc/cp namespace prefixes.
type coreProperties struct {
	Title          string `xml:"title"`
	Creator        string `xml:"creator"`
	LastModifiedBy string `xml:"lastModifiedBy"`
}

func (e *Extractor) extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx container: %w", err)
	}
	defer archive.Close()

	var lines []string

	if props, err := readCoreProperties(&archive.Reader); err == nil {
		lines = append(lines,
			fmt.Sprintf("タイトル: %s", orUnknown(props.Title)),
			fmt.Sprintf("作成者: %s", orUnknown(props.Creator)),
			fmt.Sprintf("最終更新者: %s", orUnknown(props.LastModifiedBy)))
	}

	paragraphs, tables, err := parseDocxBody(&archive.Reader)
	if err != nil {
		return "", err
	}

	lines = append(lines, sectionSeparator, "文書内容:")
	lines = append(lines, paragraphs...)

	if len(tables) > 0 {
		lines = append(lines, "\n--- テーブル内容 ---")
		for i, table := range tables {
			if i >= maxDocxTables {
				break
			}
			lines = append(lines, fmt.Sprintf("テーブル %d:", i+1))
			for _, row := range table {
				lines = append(lines, strings.Join(row, " | "))
			}
			lines = append(lines, "")
		}
	}

	return fmt.Sprintf("%s\n\n%s", e.fileInfo(path), strings.Join(lines, "\n")), nil
}

func (e *Extractor) extractPPTX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pptx container: %w", err)
	}
	defer archive.Close()

	totalSlides := 0
	for _, f := range archive.File {
		if strings.HasPrefix(f.Name, pptxSlideDir+"slide") && strings.HasSuffix(f.Name, ".xml") {
			totalSlides++
		}
	}

	lines := []string{
		fmt.Sprintf("プレゼンテーション名: %s", filepath.Base(path)),
		fmt.Sprintf("スライド数: %d", totalSlides),
		sectionSeparator,
	}

	// Slide files are slide1.xml, slide2.xml, ... in presentation order.
	for i := 1; i <= totalSlides && i <= maxPptxSlides; i++ {
		slideName := fmt.Sprintf("%sslide%d.xml", pptxSlideDir, i)
		texts, err := parseSlideText(&archive.Reader, slideName)
		if err != nil {
			e.logger.Warn("failed to parse slide", "path", path, "slide", slideName, "err", err.Error())
			continue
		}
		lines = append(lines, fmt.Sprintf("--- スライド %d ---", i))
		lines = append(lines, texts...)
		lines = append(lines, "")
	}

	if totalSlides > maxPptxSlides {
		lines = append(lines, fmt.Sprintf("...(残り %d スライドは省略)...", totalSlides-maxPptxSlides))
	}

	return fmt.Sprintf("%s\n\n%s", e.fileInfo(path), strings.Join(lines, "\n")), nil
}

func (e *Extractor) extractXLSX(path string) (string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()

	lines := []string{
		fmt.Sprintf("ブック名: %s", filepath.Base(path)),
		fmt.Sprintf("シート数: %d", len(sheets)),
		fmt.Sprintf("シート一覧: %s", strings.Join(sheets, ", ")),
		sectionSeparator,
	}

	for i, sheet := range sheets {
		if i >= maxXlsxSheets {
			break
		}
		lines = append(lines, fmt.Sprintf("--- シート: %s ---", sheet))

		rows, err := workbook.GetRows(sheet)
		if err != nil {
			e.logger.Warn("failed to read sheet", "path", path, "sheet", sheet, "err", err.Error())
			continue
		}

		rowCount := 0
		for _, row := range rows {
			if rowCount >= maxXlsxRows {
				lines = append(lines, "...(以降省略)...")
				break
			}
			lines = append(lines, strings.Join(row, "\t"))
			rowCount++
		}
		lines = append(lines, "")
	}

	return fmt.Sprintf("%s\n\n%s", e.fileInfo(path), strings.Join(lines, "\n")), nil
}

func readCoreProperties(archive *zip.Reader) (*coreProperties, error) {
	raw, err := readArchiveFile(archive, ooxmlCoreProps)
	if err != nil {
		return nil, err
	}
	var props coreProperties
	if err := xml.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("failed to parse core properties: %w", err)
	}
	return &props, nil
}

// parseDocxBody walks word/document.xml collecting top-level paragraph text
// and table cells. Paragraphs inside tables count as cell content only.
func parseDocxBody(archive *zip.Reader) (paragraphs []string, tables [][][]string, err error) {
	raw, err := readArchiveFile(archive, docxDocument)
	if err != nil {
		return nil, nil, err
	}

	decoder := xml.NewDecoder(strings.NewReader(string(raw)))

	var (
		inText     bool
		tableDepth int
		paragraph  strings.Builder
		cell       strings.Builder
		row        []string
		table      [][]string
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse document body: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = nil
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if tableDepth == 0 {
					if text := strings.TrimSpace(paragraph.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
					paragraph.Reset()
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if tableDepth == 1 && row != nil {
					table = append(table, row)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 && table != nil {
					tables = append(tables, table)
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if tableDepth > 0 {
				cell.Write(t)
			} else {
				paragraph.Write(t)
			}
		}
	}

	return paragraphs, tables, nil
}

// parseSlideText collects the text runs (<a:t>) of one slide, one line per
// paragraph.
func parseSlideText(archive *zip.Reader, name string) ([]string, error) {
	raw, err := readArchiveFile(archive, name)
	if err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(strings.NewReader(string(raw)))

	var (
		texts     []string
		inText    bool
		paragraph strings.Builder
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(paragraph.String()); text != "" {
					texts = append(texts, text)
				}
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}

	return texts, nil
}

func readArchiveFile(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
