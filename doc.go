// Package sentinel provides a self-healing bitemporal knowledge graph for Go.
//
// Sentinel ingests web sources, extracts entity relationships with an LLM,
// and stores every fact with its full validity history in a bolt-protocol
// property graph. Facts are never overwritten: superseded assertions are
// closed with an invalidation timestamp, so the graph can be queried as of
// any instant. A background healing loop re-scrapes stale sources and
// verifies, updates, or invalidates what they assert.
//
// # Basic Usage
//
// Create a client with the required components:
//
//	// Connect the graph store
//	st, err := store.New("bolt://localhost:7687", "neo4j", "password", "neo4j")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close(ctx)
//
//	// Create the scrape and extract layers
//	scraper := scrape.New(cfg.Scraper, cfg.CircuitBreaker, alert.New(cfg.Alert), logger)
//	extractor, err := extract.NewLLMExtractor(cfg.Model, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Create the sentinel client
//	client, err := sentinel.NewClient(st, scraper, extractor, cfg.Heal, nil, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Watching Sources
//
// Watch scrapes a URL, extracts facts, and reconciles them with history:
//
//	result := client.Watch(ctx, "https://example.com/about")
//	fmt.Println(result.Status)
//
// # Querying
//
// Ask answers natural-language questions, optionally as of a past instant:
//
//	resp, err := client.Ask(ctx, "Who is the CEO of Example Corp?", "")
//	resp, err = client.Ask(ctx, "Who was the CEO?", "2023-01-01T00:00:00Z")
//
// # Healing
//
// Run one pass, or keep a loop going until the context is cancelled:
//
//	report := client.HealOnce(ctx)
//	go client.RunHealingLoop(ctx)
//
// For the HTTP facade and CLI around this library, see cmd/sentinel.
package sentinel
