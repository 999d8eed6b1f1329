package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"report.PDF", true},
		{"Slides.PpTx", true},
		{"archive.tar.xlsx", true},
		{"report.exe", false},
		{"report.pdf.exe", false},
		{"README", false},
		{"pdf", false},
		{"report.", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedFile(tt.name))
		})
	}
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.pdf", "My_cool_movie.pdf"},
		{"../../../etc/passwd", "etc_passwd"},
		{`..\..\windows\notes.txt`, "windows_notes.txt"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"résumé final.docx", "resume_final.docx"},
		{"  spaced\tout  .txt ", "spaced_out_.txt"},
		{"<script>alert(1)</script>.png", "scriptalert1_script.png"},
		{".hidden.txt", "hidden.txt"},
		{"../", ""},
		{"日本語", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}

func TestStoredName(t *testing.T) {
	a := StoredName("notes.TXT")
	b := StoredName("notes.TXT")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".txt"))
	assert.NotContains(t, a, "notes")
	assert.Len(t, a, 36+len(".txt"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".pdf", Extension("a.b.PDF"))
	assert.Equal(t, "", Extension("noext"))
}
