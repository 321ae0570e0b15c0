package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

func TestExtract_Formats(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		contentType string
		filename    string
		want        string
	}{
		{
			name:        "plain text",
			data:        "\xef\xbb\xbf§ 1 Scope  \r\nThis agreement applies.\r\n",
			contentType: "text/plain; charset=utf-8",
			want:        "§ 1 Scope\nThis agreement applies.",
		},
		{
			name:     "extension fallback",
			data:     "Article 1",
			filename: "contract.TXT",
			want:     "Article 1",
		},
		{
			name:     "no type no extension",
			data:     "Article 2",
			filename: "README",
			want:     "Article 2",
		},
		{
			name:     "markdown keeps numbering and tables",
			filename: "policy.md",
			data: "# Privacy Policy\n\n## 1. Controller\n\nThe **controller** is *ACME GmbH*.\n\n" +
				"- see [Art. 13](https://gdpr.eu/article-13)\n\n2. Retention\n\n| Data | Period |\n|---|---|\n",
			want: "Privacy Policy\n\n1. Controller\n\nThe controller is ACME GmbH.\n\nsee Art. 13\n\n2. Retention\n\n| Data | Period |\n|---|---|",
		},
		{
			name:        "html",
			contentType: "text/html",
			data: `<html><head><title>Terms</title><style>p{}</style></head><body>
				<h1>Terms of Service</h1><script>alert(1)</script>
				<p>Section 1.&nbsp;Liability is   limited.</p>
				<table><tr><th>Fee</th><th>Due</th></tr><tr><td>100 EUR</td><td>30 days</td></tr></table>
				<p>Line one<br>Line two</p></body></html>`,
			want: "Terms of Service\n\nSection 1. Liability is limited.\n\n| Fee | Due |\n| 100 EUR | 30 days |\n\nLine one\nLine two",
		},
		{
			name:        "nfc normalisation",
			contentType: "text/plain",
			data:        "Vertragsku\u0308ndigung",
			want:        "Vertragsk\u00fcndigung",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Extract(context.Background(), []byte(tt.data), tt.contentType, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		filename    string
		unsupported bool
	}{
		{"pdf", []byte("%PDF-1.7"), "application/pdf", "a.pdf", true},
		{"unknown extension", []byte("x"), "", "scan.tiff", true},
		{"invalid utf8", []byte{0xff, 0xfe, 0x41}, "text/plain", "", false},
		{"empty", []byte("  \n "), "text/plain", "", false},
		{"empty html", []byte("<html><body><script>x()</script></body></html>"), "text/html", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), tt.data, tt.contentType, tt.filename)
			require.ErrorIs(t, err, domain.ErrExtraction)
			assert.Equal(t, tt.unsupported, errors.Is(err, domain.ErrUnsupportedType))
		})
	}
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, []byte("text"), "text/plain", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReverseAnonymization(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		text string
		m    map[string]string
		want string
	}{
		{"nil map", "[PARTY_1] pays", nil, "[PARTY_1] pays"},
		{
			name: "all occurrences",
			text: "[PARTY_1] pays [PARTY_2]; [PARTY_1] signs.",
			m:    map[string]string{"[PARTY_1]": "ACME GmbH", "[PARTY_2]": "Jane Doe"},
			want: "ACME GmbH pays Jane Doe; ACME GmbH signs.",
		},
		{
			name: "longer key wins",
			text: "PERSON_1 and PERSON_10",
			m:    map[string]string{"PERSON_1": "Ann", "PERSON_10": "Bob"},
			want: "Ann and Bob",
		},
		{
			name: "no rescanning of replacements",
			text: "A B",
			m:    map[string]string{"A": "B", "B": "C"},
			want: "B C",
		},
		{"empty key ignored", "text", map[string]string{"": "x"}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ReverseAnonymization(tt.text, tt.m))
		})
	}
}

func TestTitle(t *testing.T) {
	e := New()
	tests := []struct {
		name, data, contentType, filename, want string
	}{
		{"html title", "<title> Master Agreement </title><h1>x</h1>", "text/html", "", "Master Agreement"},
		{"html h1", "<body><h1>DPA</h1></body>", "", "dpa.html", "DPA"},
		{"markdown", "intro\n# Lease Agreement\n", "", "lease.md", "Lease Agreement"},
		{"filename", "text", "text/plain", "/tmp/service_level-agreement.txt", "service level agreement"},
		{"nothing", "text", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Title([]byte(tt.data), tt.contentType, tt.filename))
		})
	}
}
