package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stamper "github.com/jungcome7/pdf-stamper"
	"github.com/jungcome7/pdf-stamper/internal/pdftest"
)

func TestValidateDocument(t *testing.T) {
	pdf := pdftest.Pages(t, 1)

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr bool
	}{
		{"pdf extension and content", "contract.pdf", pdf, false},
		{"uppercase extension", "CONTRACT.PDF", pdf, false},
		{"content sniffed without extension", "upload", pdf, false},
		{"png is rejected", "stamp.png", pdftest.PNG(t, 4, 4, pdftest.Red), true},
		{"text is rejected", "notes.txt", []byte("hello"), true},
		{"empty is rejected", "empty.pdf", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.file, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, stamper.ErrInvalidFileType)
				assert.True(t, IsRejected(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStamp(t *testing.T) {
	t.Run("accepts png and records its size", func(t *testing.T) {
		def, err := Stamp("seal.png", pdftest.PNG(t, 30, 20, pdftest.Red))
		require.NoError(t, err)
		assert.NotEmpty(t, def.ID)
		assert.Equal(t, "seal", def.Name)
		assert.Equal(t, 30, def.Width)
		assert.Equal(t, 20, def.Height)

		img, err := png.Decode(bytes.NewReader(def.Image))
		require.NoError(t, err)
		_, ok := img.(*image.NRGBA)
		assert.True(t, ok, "normalized stamps decode as NRGBA, got %T", img)
	})

	t.Run("ids are unique", func(t *testing.T) {
		data := pdftest.PNG(t, 4, 4, pdftest.Red)
		a, err := Stamp("a.png", data)
		require.NoError(t, err)
		b, err := Stamp("a.png", data)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("rejects non png", func(t *testing.T) {
		_, err := Stamp("seal.jpg", []byte("\xff\xd8\xff\xe0 jpeg-ish"))
		assert.ErrorIs(t, err, stamper.ErrInvalidFileType)
	})

	t.Run("png extension with broken content fails to decode", func(t *testing.T) {
		_, err := Stamp("seal.png", []byte("not really a png"))
		assert.ErrorIs(t, err, stamper.ErrDecode)
	})

	t.Run("16-bit input is normalized to 8-bit", func(t *testing.T) {
		src := image.NewNRGBA64(image.Rect(0, 0, 3, 3))
		src.Set(1, 1, color.NRGBA64{R: 0xffff, A: 0xffff})
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, src))

		def, err := Stamp("deep.png", buf.Bytes())
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(def.Image))
		require.NoError(t, err)
		assert.Equal(t, color.NRGBAModel, cfg.ColorModel)
	})
}

func TestStamps(t *testing.T) {
	good := pdftest.PNG(t, 4, 4, pdftest.Red)
	files := []File{
		{Name: "one.png", Data: good},
		{Name: "two.txt", Data: []byte("nope")},
		{Name: "three.png", Data: good},
		{Name: "four.png", Data: good},
	}

	defs, errs := Stamps(files, 3)
	require.Len(t, defs, 2)
	assert.Equal(t, "one", defs[0].Name)
	assert.Equal(t, "three", defs[1].Name)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], stamper.ErrInvalidFileType)
	assert.ErrorIs(t, errs[1], stamper.ErrCapacity)

	defs, errs = Stamps(files, 0)
	assert.Empty(t, defs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], stamper.ErrCapacity)
}

func TestGenerateQR(t *testing.T) {
	def, err := GenerateQR("https://example.com/verify/42", 120)
	require.NoError(t, err)
	assert.Equal(t, 120, def.Width)
	assert.Equal(t, 120, def.Height)

	img, err := png.Decode(bytes.NewReader(def.Image))
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a, "quiet zone should be transparent")

	_, err = GenerateQR("", 10)
	assert.ErrorIs(t, err, stamper.ErrInvalidParam)
}

func TestGeneratePDF417(t *testing.T) {
	def, err := GeneratePDF417("INVOICE-2026-0042", 4, 2)
	require.NoError(t, err)
	assert.Positive(t, def.Width)
	assert.Positive(t, def.Height)
	assert.Equal(t, 0, def.Height%6, "rows are drawn 3*module pixels tall")

	_, err = GeneratePDF417("x", 0, 1)
	assert.ErrorIs(t, err, stamper.ErrInvalidParam)
}

func TestOutputName(t *testing.T) {
	ts := time.Date(2026, 10, 16, 9, 5, 7, 0, time.UTC)
	tests := []struct {
		original string
		want     string
	}{
		{"contract.pdf", "stamped_contract_20261016-090507.pdf"},
		{"/tmp/in/Report.Final.PDF", "stamped_Report.Final_20261016-090507.PDF"},
		{"noext", "stamped_noext_20261016-090507.pdf"},
		{"", "stamped_document_20261016-090507.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.original, stamper.DefaultOutputPrefix, ts))
		})
	}
}
