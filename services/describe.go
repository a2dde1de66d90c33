package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"propwise/apperr"
	"propwise/identity"
)

// ListingFacts is the draft listing an agent wants a description for.
type ListingFacts struct {
	Purpose      string `json:"purpose"`
	PropertyType string `json:"property_type"`
	City         string `json:"city"`
	Area         string `json:"area"`
	Bedrooms     string `json:"bedrooms"`
	Bathrooms    string `json:"bathrooms"`
	AreaSize     string `json:"area_size"`
	AreaUnit     string `json:"area_unit"`
	Price        string `json:"price"`
}

// DescriptionService writes listing descriptions with a text generator that
// is built on first use, never at startup.
type DescriptionService struct {
	newClient func() (TextGenerator, error)
	currency  string

	once      sync.Once
	client    TextGenerator
	clientErr error
}

func NewDescriptionService(newClient func() (TextGenerator, error), currency string) *DescriptionService {
	return &DescriptionService{newClient: newClient, currency: currency}
}

func (s *DescriptionService) generator() (TextGenerator, error) {
	s.once.Do(func() {
		s.client, s.clientErr = s.newClient()
	})
	return s.client, s.clientErr
}

func (s *DescriptionService) Describe(ctx context.Context, p identity.Principal, facts ListingFacts) (string, error) {
	if !p.Authenticated() {
		return "", apperr.Forbidden("sign in to generate descriptions")
	}

	gen, err := s.generator()
	if err != nil {
		return "", apperr.External("description generator unavailable", err)
	}

	text, err := gen.Generate(ctx, s.prompt(facts))
	if err != nil {
		return "", apperr.External("could not generate description", err)
	}
	return text, nil
}

func orAny(v string) string {
	if strings.TrimSpace(v) == "" {
		return "any"
	}
	return v
}

func (s *DescriptionService) prompt(f ListingFacts) string {
	var b strings.Builder
	b.WriteString("Write a compelling and professional real estate listing description.\n")
	fmt.Fprintf(&b, "- The property is for %s and is a %s.\n", f.Purpose, f.PropertyType)
	fmt.Fprintf(&b, "- It is located in %s, %s.\n", f.Area, f.City)
	fmt.Fprintf(&b, "- It has %s bedrooms and %s bathrooms.\n", orAny(f.Bedrooms), orAny(f.Bathrooms))
	fmt.Fprintf(&b, "- The size is %s %s.\n", f.AreaSize, f.AreaUnit)
	fmt.Fprintf(&b, "- The price is %s %s.\n\n", s.currency, f.Price)
	b.WriteString("Write only the description itself, in short and simple words, as 2-3 engaging paragraphs.\n")
	b.WriteString("- Use strong, positive adjectives.\n")
	b.WriteString("- Highlight the key features (bedrooms, bathrooms, location).\n")
	b.WriteString("- DO NOT include the price in the final description.\n")
	b.WriteString("- The tone should be professional and inviting.\n")
	return b.String()
}
