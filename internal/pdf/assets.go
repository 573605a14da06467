package pdf

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// Assets reads static artwork from a directory:
//
//	<dir>/logo.png
//	<dir>/signatures/<slug>.png|jpg|jpeg
//
// Missing files are reported as absent, never as errors.
type Assets struct {
	Dir string
	Log zerolog.Logger
}

// Image is raster data plus the fpdf image type ("PNG" or "JPG").
type Image struct {
	Name string
	Type string
	Data []byte
}

func (a Assets) Logo() (Image, bool) {
	return a.read("logo", "logo.png")
}

func (a Assets) Signature(slug string) (Image, bool) {
	if slug == "" {
		return Image{}, false
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if img, ok := a.read("sig-"+slug, filepath.Join("signatures", slug+ext)); ok {
			return img, true
		}
	}
	return Image{}, false
}

func (a Assets) read(name, rel string) (Image, bool) {
	if a.Dir == "" {
		return Image{}, false
	}
	data, err := os.ReadFile(filepath.Join(a.Dir, rel))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.Log.Debug().Err(err).Str("asset", rel).Msg("asset unreadable")
		}
		return Image{}, false
	}
	if len(data) == 0 {
		return Image{}, false
	}
	typ := "PNG"
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".jpg", ".jpeg":
		typ = "JPG"
	}
	return Image{Name: name, Type: typ, Data: data}, true
}

// Slug lowercases s and joins its letters and digits with dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
