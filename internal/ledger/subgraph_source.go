package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"twister-backend/internal/field"
)

// DefaultSubgraphURL is the public Twister subgraph on The Graph studio.
const DefaultSubgraphURL = "https://api.studio.thegraph.com/query/65791/twister/v0.0.2"

const subgraphPageSize = 1000

// SubgraphSource reads AddLeaf entities from a GraphQL indexer.
type SubgraphSource struct {
	url    string
	apiKey string
	client *http.Client
}

// NewSubgraphSource creates a source with a 30s HTTP timeout.
func NewSubgraphSource(url, apiKey string) *SubgraphSource {
	if url == "" {
		url = DefaultSubgraphURL
	}
	return &SubgraphSource{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SubgraphSource) Name() string {
	return "subgraph"
}

type subgraphLeaf struct {
	Index           string `json:"index"`
	Commitment      string `json:"commitment"`
	Root            string `json:"root"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        string `json:"logIndex"`
}

type subgraphResponse struct {
	Data struct {
		AddLeafs []subgraphLeaf `json:"addLeafs"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchLeaves pages through addLeafs ordered by index, starting at cursor.NextIndex.
func (s *SubgraphSource) FetchLeaves(ctx context.Context, cursor Cursor) ([]LeafRecord, error) {
	var records []LeafRecord
	next := cursor.NextIndex
	for {
		page, err := s.queryPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, item := range page {
			r, err := item.toRecord()
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}
		if len(page) < subgraphPageSize {
			return records, nil
		}
		next = records[len(records)-1].Index + 1
	}
}

func (s *SubgraphSource) queryPage(ctx context.Context, fromIndex uint64) ([]subgraphLeaf, error) {
	query := fmt.Sprintf(`{
		addLeafs(
			first: %d
			where: { index_gte: "%d" }
			orderBy: index
			orderDirection: asc
		) {
			index
			commitment
			root
			blockNumber
			transactionHash
			logIndex
		}
	}`, subgraphPageSize, fromIndex)

	requestData, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(requestData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result subgraphResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("subgraph returned error: %s", result.Errors[0].Message)
	}
	return result.Data.AddLeafs, nil
}

func (l subgraphLeaf) toRecord() (LeafRecord, error) {
	index, err := strconv.ParseUint(l.Index, 10, 64)
	if err != nil {
		return LeafRecord{}, fmt.Errorf("invalid leaf index %q: %w", l.Index, err)
	}
	commitment, err := field.ParseHex(l.Commitment)
	if err != nil {
		return LeafRecord{}, fmt.Errorf("leaf %d: %w", index, err)
	}
	r := LeafRecord{
		Index:           index,
		Commitment:      commitment,
		TransactionHash: l.TransactionHash,
	}
	if l.Root != "" {
		if r.Root, err = field.ParseHex(l.Root); err != nil {
			return LeafRecord{}, fmt.Errorf("leaf %d root: %w", index, err)
		}
	}
	if l.BlockNumber != "" {
		if r.BlockNumber, err = strconv.ParseUint(l.BlockNumber, 10, 64); err != nil {
			return LeafRecord{}, fmt.Errorf("leaf %d block number: %w", index, err)
		}
	}
	if l.LogIndex != "" {
		li, err := strconv.ParseUint(l.LogIndex, 10, 32)
		if err != nil {
			return LeafRecord{}, fmt.Errorf("leaf %d log index: %w", index, err)
		}
		r.LogIndex = uint(li)
	}
	return r, nil
}
