package source

import (
	"context"
	"strings"
	"testing"

	"DealScanner/internal/domain"
)

type namedProvider string

func (p namedProvider) Name() string { return string(p) }

func (p namedProvider) Search(context.Context, string, domain.SearchQuery) ([]domain.Listing, error) {
	return []domain.Listing{{ID: string(p)}}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedProvider("ebay"))
	reg.Register(namedProvider("fixture"))

	p, err := reg.Resolve("fixture")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	listings, _ := p.Search(context.Background(), "", domain.SearchQuery{})
	if len(listings) != 1 || listings[0].ID != "fixture" {
		t.Fatalf("resolved wrong provider: %+v", listings)
	}

	_, err = reg.Resolve("vinted")
	if err == nil || !strings.Contains(err.Error(), "[ebay fixture]") {
		t.Fatalf("expected error listing registered sources, got %v", err)
	}
}
