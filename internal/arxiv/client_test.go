package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>42</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>2</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2103.12345v1</id>
    <title>Attention
       Is All You Need</title>
    <summary>  We propose a new architecture.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <published>2021-03-22T17:59:59Z</published>
    <updated>2021-03-23T10:00:00Z</updated>
    <category term="cs.LG"/>
    <category term="cs.CL"/>
    <link rel="alternate" href="http://arxiv.org/abs/2103.12345v1" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2103.12345v1" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Second Paper</title>
    <summary>Another abstract.</summary>
    <author><name>Solo Author</name></author>
    <published>2017-06-12T00:00:00Z</published>
    <updated>2017-06-12T00:00:00Z</updated>
    <category term="cs.CL"/>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

func TestSearch(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"search_query": q.Get("search_query"),
			"start":        q.Get("start"),
			"max_results":  q.Get("max_results"),
			"sortBy":       q.Get("sortBy"),
			"sortOrder":    q.Get("sortOrder"),
		}
		w.Write([]byte(sampleFeed))
	})

	resp, err := client.Search(context.Background(), "attention transformers", 0, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotQuery["search_query"] != "attention AND transformers" {
		t.Errorf("Expected normalized query, got %q", gotQuery["search_query"])
	}
	if gotQuery["sortBy"] != "submittedDate" || gotQuery["sortOrder"] != "descending" {
		t.Errorf("Expected newest-first sort, got %v", gotQuery)
	}

	if resp.TotalResults != 42 {
		t.Errorf("Expected 42 total results, got %d", resp.TotalResults)
	}
	if len(resp.Papers) != 2 {
		t.Fatalf("Expected 2 papers, got %d", len(resp.Papers))
	}

	p := resp.Papers[0]
	if p.Title != "Attention Is All You Need" {
		t.Errorf("Expected collapsed title, got %q", p.Title)
	}
	if p.ShortID != "2103.12345v1" {
		t.Errorf("Expected short id from abs URL, got %q", p.ShortID)
	}
	if p.Summary != "We propose a new architecture." {
		t.Errorf("Expected trimmed summary, got %q", p.Summary)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Ashish Vaswani" {
		t.Errorf("Unexpected authors %v", p.Authors)
	}
	if p.Category != "cs.LG" {
		t.Errorf("Expected primary category, got %q", p.Category)
	}
	if p.PDFLink != "http://arxiv.org/pdf/2103.12345v1" {
		t.Errorf("Expected pdf link, got %q", p.PDFLink)
	}
	if p.Published.Year() != 2021 {
		t.Errorf("Unexpected published time %v", p.Published)
	}

	// The second entry has no pdf link.
	if resp.Papers[1].PDFLink != "" {
		t.Errorf("Expected empty pdf link, got %q", resp.Papers[1].PDFLink)
	}
}

func TestSearchDefaultPageSize(t *testing.T) {
	var gotMax string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("max_results")
		w.Write([]byte(sampleFeed))
	})

	if _, err := client.Search(context.Background(), "q", 0, 0); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotMax != "10" {
		t.Errorf("Expected default page size 10, got %q", gotMax)
	}
}

func TestGetByID(t *testing.T) {
	var gotIDList string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDList = r.URL.Query().Get("id_list")
		w.Write([]byte(sampleFeed))
	})

	paper, err := client.GetByID(context.Background(), "2103.12345")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gotIDList != "2103.12345" {
		t.Errorf("Expected id_list param, got %q", gotIDList)
	}
	if paper.ShortID != "2103.12345v1" {
		t.Errorf("Unexpected paper %+v", paper)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	})

	if _, err := client.GetByID(context.Background(), "0000.00000"); err == nil {
		t.Error("Expected error for empty feed")
	}
}

func TestSearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := client.Search(context.Background(), "q", 0, 10); err == nil {
		t.Error("Expected error for server failure")
	}
}

func TestSections(t *testing.T) {
	sections, err := Sections()
	if err != nil {
		t.Fatalf("Failed to load taxonomy: %v", err)
	}
	if len(sections) == 0 {
		t.Fatal("Expected at least one section")
	}

	found := false
	for _, s := range sections {
		for _, c := range s.Categories {
			if c.ID == "cs.LG" {
				found = true
			}
		}
	}
	if !found {
		t.Error("Expected cs.LG in the taxonomy")
	}

	if got := CategoryQuery("cs.LG"); got != "cat:cs.LG" {
		t.Errorf("Unexpected category query %q", got)
	}
}
