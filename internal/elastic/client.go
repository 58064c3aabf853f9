package elastic

import (
	"fmt"
	"log"

	es "github.com/elastic/go-elasticsearch/v8"
)

func Connect(url string) (*es.Client, error) {
	cfg := es.Config{
		Addresses: []string{url},
	}
	client, err := es.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch: %w", err)
	}
	log.Println("✅ Connected to Elasticsearch")
	return client, nil
}
