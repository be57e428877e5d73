package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func sampleDirectory() *Directory {
	return &Directory{
		Name: "Anto",
		Sections: []Section{
			{ID: "main", Title: "Main", Links: []Link{
				{ID: "shop", Label: "Shop", URL: "https://shop.example.com"},
				{ID: "blog", Label: "Blog", URL: "https://blog.example.com"},
			}},
			{ID: "more", Title: "More", Links: []Link{
				{ID: "podcast", Label: "Podcast", URL: "https://pod.example.com"},
			}},
		},
		Socials: []Social{
			{ID: "ig", Platform: "instagram", URL: "https://instagram.com/anto"},
		},
	}
}

func TestDirectory_FindURL(t *testing.T) {
	t.Parallel()

	d := sampleDirectory()

	tests := []struct {
		name    string
		id      string
		wantURL string
		wantOK  bool
	}{
		{"first section", "shop", "https://shop.example.com", true},
		{"second section", "podcast", "https://pod.example.com", true},
		{"social", "ig", "https://instagram.com/anto", true},
		{"unknown", "nope", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			url, ok := d.FindURL(tt.id)
			if ok != tt.wantOK || url != tt.wantURL {
				t.Errorf("FindURL(%q) = (%q, %v), want (%q, %v)", tt.id, url, ok, tt.wantURL, tt.wantOK)
			}
		})
	}
}

func TestDirectory_FindURL_SectionsBeforeSocials(t *testing.T) {
	t.Parallel()

	d := &Directory{
		Sections: []Section{{ID: "s", Links: []Link{{ID: "dup", URL: "https://section.example.com"}}}},
		Socials:  []Social{{ID: "dup", URL: "https://social.example.com"}},
	}

	url, ok := d.FindURL("dup")
	if !ok || url != "https://section.example.com" {
		t.Errorf("FindURL = (%q, %v), want section url", url, ok)
	}
}

func TestDirectory_FindURL_NilDirectory(t *testing.T) {
	t.Parallel()

	var d *Directory
	if _, ok := d.FindURL("x"); ok {
		t.Error("nil directory should not resolve")
	}
}

func TestDirectory_Validate(t *testing.T) {
	t.Parallel()

	if err := sampleDirectory().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	dupAcross := sampleDirectory()
	dupAcross.Socials = append(dupAcross.Socials, Social{ID: "shop", Platform: "x"})
	if err := dupAcross.Validate(); !errors.Is(err, ErrDuplicateLinkID) {
		t.Errorf("Validate() error = %v, want ErrDuplicateLinkID", err)
	}

	empty := sampleDirectory()
	empty.Sections[0].Links[0].ID = ""
	if err := empty.Validate(); !errors.Is(err, ErrEmptyLinkID) {
		t.Errorf("Validate() error = %v, want ErrEmptyLinkID", err)
	}
}

func TestClickEvent_WireShape(t *testing.T) {
	t.Parallel()

	host := "instagram.com"
	ev := ClickEvent{
		Timestamp:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ReferrerHost: &host,
		UserAgent:    "Mozilla/5.0",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"t":"2024-03-01T12:00:00Z","r":"instagram.com","ua":"Mozilla/5.0","co":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}
