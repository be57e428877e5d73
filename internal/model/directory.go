// Package model defines domain entities for the application.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLinkID indicates a link or social entry without an id.
	ErrEmptyLinkID = errors.New("link id is required")
	// ErrDuplicateLinkID indicates two entries share the same id.
	ErrDuplicateLinkID = errors.New("duplicate link id")
)

// Directory is the link-in-bio document: profile, link sections and socials.
type Directory struct {
	Name     string    `json:"name"`
	Bio      string    `json:"bio"`
	Image    string    `json:"image"`
	Sections []Section `json:"sections"`
	Socials  []Social  `json:"socials"`
}

// Section groups links under a title.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Links []Link `json:"links"`
}

// Link is a single destination shown on the page.
type Link struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
	Image string `json:"image,omitempty"`
}

// Social is a social-network profile link.
type Social struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// FindURL returns the destination for a link id.
// Sections are searched in order before socials; the first match wins.
func (d *Directory) FindURL(id string) (string, bool) {
	if d == nil || id == "" {
		return "", false
	}
	for _, section := range d.Sections {
		for _, link := range section.Links {
			if link.ID == id {
				return link.URL, true
			}
		}
	}
	for _, social := range d.Socials {
		if social.ID == id {
			return social.URL, true
		}
	}
	return "", false
}

// Validate checks that every link and social has an id and that ids are
// unique across the whole document.
func (d *Directory) Validate() error {
	seen := make(map[string]struct{})
	check := func(id string) error {
		if id == "" {
			return ErrEmptyLinkID
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateLinkID, id)
		}
		seen[id] = struct{}{}
		return nil
	}

	for _, section := range d.Sections {
		for _, link := range section.Links {
			if err := check(link.ID); err != nil {
				return err
			}
		}
	}
	for _, social := range d.Socials {
		if err := check(social.ID); err != nil {
			return err
		}
	}
	return nil
}
