package ocr

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lecturely/backend/pkg/executor"
)

// Recognition is raw OCR output for one image. Confidence is on a 0-100 scale.
type Recognition struct {
	Text       string
	Confidence float64
}

// Recognizer runs OCR on an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (Recognition, error)
}

// Tesseract runs the tesseract CLI and reads its TSV output.
type Tesseract struct {
	exec     executor.Executor
	bin      string
	language string
}

// NewTesseract creates a tesseract recognizer. Empty bin and language default to
// "tesseract" and "eng".
func NewTesseract(exec executor.Executor, bin, language string) *Tesseract {
	if strings.TrimSpace(bin) == "" {
		bin = "tesseract"
	}
	if strings.TrimSpace(language) == "" {
		language = "eng"
	}
	return &Tesseract{exec: exec, bin: bin, language: language}
}

// Recognize returns the recognized text and the mean word confidence.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (Recognition, error) {
	out, err := t.exec.Execute(ctx, t.bin, imagePath, "stdout", "-l", t.language, "tsv")
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract: %w", err)
	}
	return ParseTSV(out)
}

// ParseTSV reads tesseract TSV output. Word rows (level 5) with a non-negative
// confidence contribute their text; lines are joined with newlines.
func ParseTSV(out string) (Recognition, error) {
	const (
		colLevel = 0
		colBlock = 2
		colPar   = 3
		colLine  = 4
		colConf  = 10
		colText  = 11
		minCols  = 12
	)

	var (
		lines   []string
		current []string
		lineKey string
		confSum float64
		words   int
	)
	scanner := bufio.NewScanner(strings.NewReader(out))
	header := true
	for scanner.Scan() {
		row := scanner.Text()
		if header {
			header = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		cols := strings.Split(row, "\t")
		if len(cols) < minCols || cols[colLevel] != "5" {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[colConf]), 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[colText])
		if word == "" {
			continue
		}

		key := cols[colBlock] + "." + cols[colPar] + "." + cols[colLine]
		if key != lineKey && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
		}
		lineKey = key
		current = append(current, word)
		confSum += conf
		words++
	}
	if err := scanner.Err(); err != nil {
		return Recognition{}, fmt.Errorf("tesseract: read tsv: %w", err)
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	if words == 0 {
		return Recognition{}, nil
	}
	return Recognition{
		Text:       strings.Join(lines, "\n"),
		Confidence: confSum / float64(words),
	}, nil
}
