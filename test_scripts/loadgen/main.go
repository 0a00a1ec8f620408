// Command loadgen drives a running go-docquery server: it batch-inserts
// random books, optionally indexes them, and times a mix of queries.
//
//	go run ./test_scripts/loadgen -n 10000 -url http://localhost:8080 -index
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	authors = []string{"George Orwell", "Aldous Huxley", "Margaret Atwood", "Kazuo Ishiguro", "Cormac McCarthy", "Ursula K. Le Guin"}
	genres  = []string{"Dystopian", "Satire", "Science Fiction", "Post-apocalyptic", "Fantasy"}
)

// Book represents the structure of a book document to insert
type Book struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	PublishedYear int     `json:"published_year"`
	Genre         string  `json:"genre"`
	Price         float64 `json:"price"`
	Stock         int     `json:"stock"`
}

func randomBook(rng *rand.Rand) Book {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	title := make([]byte, 8)
	for i := range title {
		title[i] = letters[rng.Intn(len(letters))]
	}
	title[0] -= 32
	return Book{
		Title:         string(title),
		Author:        authors[rng.Intn(len(authors))],
		PublishedYear: 1900 + rng.Intn(125),
		Genre:         genres[rng.Intn(len(genres))],
		Price:         float64(500+rng.Intn(2500)) / 100,
		Stock:         rng.Intn(50),
	}
}

type client struct {
	baseURL    string
	collection string
	http       *http.Client
}

func (c *client) post(path string, body interface{}, want int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+"/collections/"+c.collection+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// phase runs fn n times and prints its rate.
func phase(name string, n int, fn func(i int) error) int {
	start := time.Now()
	errors := 0
	for i := 0; i < n; i++ {
		if err := fn(i); err != nil {
			errors++
			if errors <= 5 {
				fmt.Printf("  %s %d: %v\n", name, i, err)
			}
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("%-22s %6d ops in %-12v %10.1f ops/sec  errors: %d\n",
		name, n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds(), errors)
	return errors
}

func main() {
	var (
		n          = flag.Int("n", 1000, "number of books to insert")
		baseURL    = flag.String("url", "http://localhost:8080", "server URL")
		collection = flag.String("collection", "loadgen_books", "collection to use")
		batchSize  = flag.Int("batch", 500, "documents per batch insert")
		queries    = flag.Int("queries", 200, "queries per query phase")
		index      = flag.Bool("index", false, "create an {author, published_year} index before querying")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	if *n <= 0 || *batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -n and -batch must be greater than 0")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	c := &client{baseURL: strings.TrimRight(*baseURL, "/"), collection: *collection, http: &http.Client{Timeout: 30 * time.Second}}

	fmt.Printf("Load test: %d books into %s at %s\n\n", *n, *collection, c.baseURL)
	failed := 0

	batches := (*n + *batchSize - 1) / *batchSize
	failed += phase("batch insert", batches, func(i int) error {
		size := *batchSize
		if rest := *n - i**batchSize; rest < size {
			size = rest
		}
		docs := make([]Book, size)
		for j := range docs {
			docs[j] = randomBook(rng)
		}
		return c.post("/batch", map[string]interface{}{"documents": docs}, http.StatusCreated)
	})

	if *index {
		failed += phase("create index", 1, func(int) error {
			return c.post("/indexes", map[string]interface{}{
				"fields": []map[string]interface{}{
					{"field": "author", "direction": 1},
					{"field": "published_year", "direction": 1},
				},
			}, http.StatusCreated)
		})
	}

	failed += phase("equality query", *queries, func(int) error {
		return c.post("/query", map[string]interface{}{
			"filter": map[string]interface{}{"author": authors[rng.Intn(len(authors))]},
			"limit":  20,
		}, http.StatusOK)
	})

	failed += phase("range + sort query", *queries, func(int) error {
		from := 1900 + rng.Intn(100)
		return c.post("/query", map[string]interface{}{
			"filter": map[string]interface{}{
				"author":         authors[rng.Intn(len(authors))],
				"published_year": map[string]interface{}{"$gte": from, "$lt": from + 20},
			},
			"sort": []map[string]interface{}{{"published_year": 1}},
		}, http.StatusOK)
	})

	failed += phase("paged query", *queries, func(i int) error {
		return c.post("/query", map[string]interface{}{
			"filter":    map[string]interface{}{"genre": genres[i%len(genres)]},
			"page":      1 + i%5,
			"page_size": 25,
		}, http.StatusOK)
	})

	failed += phase("aggregate by decade", *queries/10+1, func(int) error {
		return c.post("/aggregate", map[string]interface{}{
			"pipeline": []map[string]interface{}{
				{"$group": map[string]interface{}{
					"_id":       map[string]interface{}{"$subtract": []interface{}{"$published_year", map[string]interface{}{"$mod": []interface{}{"$published_year", 10}}}},
					"count":     map[string]interface{}{"$sum": 1},
					"avg_price": map[string]interface{}{"$avg": "$price"},
				}},
				{"$sort": map[string]interface{}{"_id": 1}},
			},
		}, http.StatusOK)
	})

	fmt.Println("\n" + strings.Repeat("=", 60))
	if failed > 0 {
		fmt.Printf("Load test finished with %d errors\n", failed)
		os.Exit(1)
	}
	fmt.Println("Load test completed successfully!")
}
