package crossencoder

import (
	"context"
	"testing"
)

func TestLocalRerankerClient(t *testing.T) {
	client := NewLocalRerankerClient(DefaultConfig(ProviderLocal))
	defer client.Close()

	ctx := context.Background()
	query := "quarterly revenue growth"
	passages := []string{
		"Quarterly revenue growth accelerated to 14 percent",
		"The office relocated to a new building",
		"Revenue declined in the fourth quarter",
		"Headcount remained flat year over year",
	}

	results, err := client.Rank(ctx, query, passages)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(results) != len(passages) {
		t.Fatalf("expected %d results, got %d", len(passages), len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Errorf("results not sorted by score: %f < %f", results[i-1].Score, results[i].Score)
		}
	}

	if results[0].Passage != "Quarterly revenue growth accelerated to 14 percent" {
		t.Errorf("expected highest overlap passage first, got %q", results[0].Passage)
	}
}

func TestLocalRerankerEmptyPassages(t *testing.T) {
	client := NewLocalRerankerClient(Config{})
	defer client.Close()

	results, err := client.Rank(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	if _, err := NewClient(Provider("bogus"), Config{}, nil); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewClientOpenAIRequiresNLP(t *testing.T) {
	if _, err := NewClient(ProviderOpenAI, Config{}, nil); err == nil {
		t.Fatal("expected error when language model client is missing")
	}
}
