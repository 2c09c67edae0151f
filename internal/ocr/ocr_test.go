package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarwowski/receipt2ledger/internal/common"
)

// stubRunner answers tesseract invocations from canned output. The tsv
// argument distinguishes the confidence pass from the text pass.
type stubRunner struct {
	text    string
	tsv     string
	textErr error
	tsvErr  error
}

func (s stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	if len(args) > 0 && args[len(args)-1] == "tsv" {
		return []byte(s.tsv), nil, s.tsvErr
	}
	return []byte(s.text), nil, s.textErr
}

func tsvRow(conf, word string) string {
	return strings.Join([]string{"5", "1", "1", "1", "1", "1", "10", "10", "50", "20", conf, word}, "\t")
}

func testTSV(confs ...string) string {
	lines := []string{"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"}
	for i, c := range confs {
		lines = append(lines, tsvRow(c, "w"+string(rune('a'+i))))
	}
	return strings.Join(lines, "\n")
}

func newStubExtractor(r Runner) *Extractor {
	e := NewExtractor(Config{}, nil)
	e.runner = r
	return e
}

func TestExtractBytes(t *testing.T) {
	e := newStubExtractor(stubRunner{
		text: "SUPERMART\n\n\nTOTAL $25.50\n09/01/2025\n",
		tsv:  testTSV("90", "95", "-1", "85"),
	})

	res, err := e.ExtractBytes(context.Background(), []byte("img"), ".jpg")
	require.NoError(t, err)
	assert.Equal(t, "SUPERMART\n\nTOTAL $25.50\n09/01/2025", res.Text)
	assert.Equal(t, "image-ocr", res.Method)
	assert.False(t, res.LowTrust)
	assert.Greater(t, res.Confidence, float32(0.6))
	assert.LessOrEqual(t, res.Confidence, float32(1.0))
}

func TestExtractBytes_UnsupportedExtension(t *testing.T) {
	e := newStubExtractor(stubRunner{})
	_, err := e.ExtractBytes(context.Background(), []byte("x"), ".exe")
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestExtract_EmptyTextFails(t *testing.T) {
	e := newStubExtractor(stubRunner{text: "   \n\n  "})
	_, err := e.ExtractBytes(context.Background(), []byte("x"), ".png")
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestExtract_TSVFailureDegradesToHeuristic(t *testing.T) {
	e := newStubExtractor(stubRunner{
		text:   "SUPERMART\nTOTAL $25.50\n09/01/2025",
		tsvErr: assert.AnError,
	})
	res, err := e.ExtractBytes(context.Background(), []byte("img"), ".jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
	assert.InDelta(t, heuristicConfidence(res.Text), res.Confidence, 1e-6)
}

func TestHeuristicConfidence(t *testing.T) {
	// date + currency + amount present
	rich := heuristicConfidence("SUPERMART\nTOTAL $25.50\n09/01/2025")
	assert.InDelta(t, 0.7, rich, 1e-6)

	// nothing receipt-like
	poor := heuristicConfidence("lorem ipsum")
	assert.InDelta(t, 0.2, poor, 1e-6)

	assert.Greater(t, rich, poor)
}

func TestNormalizeText(t *testing.T) {
	in := "HEADER   \r\n\r\n\r\n\r\nitem one\t\n||||____\nitem two"
	got := normalizeText(in)
	assert.Equal(t, "HEADER\n\nitem one\n\nitem two", got)
}

func TestTesseractTSVConfidence(t *testing.T) {
	e := newStubExtractor(stubRunner{tsv: testTSV("80", "100", "-1", "90")})
	conf, err := e.tesseractTSVConfidence(context.Background(), "ignored.png")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, conf, 1e-6)
}

func TestTesseractTSVConfidence_NoWords(t *testing.T) {
	e := newStubExtractor(stubRunner{tsv: testTSV("-1", "-1")})
	conf, err := e.tesseractTSVConfidence(context.Background(), "ignored.png")
	require.NoError(t, err)
	assert.Zero(t, conf)
}

// pdfStubRunner answers the poppler and tesseract invocations of the PDF
// path. pdftoppm writes one PNG per configured page so the glob finds them.
type pdfStubRunner struct {
	t         *testing.T
	textLayer string
	textErr   error
	pages     []string
	tsv       string
}

func (s *pdfStubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	switch name {
	case "pdftotext":
		return []byte(s.textLayer), nil, s.textErr
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := range s.pages {
			require.NoError(s.t, os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i+1), []byte("png"), 0o644))
		}
		return nil, nil, nil
	default: // tesseract
		if len(args) > 0 && args[len(args)-1] == "tsv" {
			return []byte(s.tsv), nil, nil
		}
		for i := range s.pages {
			if strings.HasSuffix(args[0], fmt.Sprintf("-%d.png", i+1)) {
				return []byte(s.pages[i]), nil, nil
			}
		}
		return nil, nil, nil
	}
}

func TestExtract_PDFTextLayer(t *testing.T) {
	e := newStubExtractor(&pdfStubRunner{
		t:         t,
		textLayer: "SUPERMART\n123 Main Street\nTOTAL $25.50\n09/01/2025\nTHANK YOU",
	})

	res, err := e.Extract(context.Background(), "receipt.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Contains(t, res.Text, "TOTAL $25.50")
	assert.False(t, res.LowTrust)
	assert.Greater(t, res.Confidence, float32(0.8))
	assert.LessOrEqual(t, res.Confidence, float32(0.98))
}

func TestExtract_ScannedPDFFallsBackToRaster(t *testing.T) {
	e := newStubExtractor(&pdfStubRunner{
		t:     t,
		pages: []string{"SUPERMART\nTOTAL $25.50", "09/01/2025\nTHANK YOU"},
		tsv:   testTSV("90", "85"),
	})

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Contains(t, res.Text, "TOTAL $25.50")
	assert.Contains(t, res.Text, "THANK YOU")
	assert.Contains(t, res.Text, "\f", "pages keep their break marker")
	assert.Greater(t, res.Confidence, float32(0))
}

func TestExtract_PDFWithNoRenderablePages(t *testing.T) {
	e := newStubExtractor(&pdfStubRunner{t: t})
	_, err := e.Extract(context.Background(), "empty.pdf")
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestExtractBytes_PDF(t *testing.T) {
	e := newStubExtractor(&pdfStubRunner{
		t:         t,
		textLayer: "CORNER CAFE\nAMOUNT DUE: 12.00 EUR\n2025-08-30\nVISIT AGAIN",
	})
	res, err := e.ExtractBytes(context.Background(), []byte("%PDF-1.4"), ".pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Contains(t, res.Text, "CORNER CAFE")
}
