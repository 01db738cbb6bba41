package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"twister-backend/internal/metrics"
	"twister-backend/internal/proofinput"
	"twister-backend/internal/types"
)

const (
	EncodingJSON = "json"
	EncodingForm = "form"
)

// RemoteProverClient posts proof inputs to an HTTP proving relay.
type RemoteProverClient struct {
	BaseURL  string
	Encoding string
	Client   *http.Client
	logger   *logrus.Logger
}

// NewRemoteProverClient creates a client. A zero timeout falls back to 10 minutes.
func NewRemoteProverClient(baseURL, encoding string, timeout time.Duration, logger *logrus.Logger) *RemoteProverClient {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	if encoding == "" {
		encoding = EncodingJSON
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RemoteProverClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Encoding: encoding,
		Client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type proveResponse struct {
	Proof   string `json:"proof"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Prove sends POST {BaseURL}/prove and returns the proof bytes.
// Every failure, including constraint violations reported by the relay, wraps ErrProverFailure.
func (c *RemoteProverClient) Prove(ctx context.Context, input *proofinput.ProofInput) (*types.Proof, error) {
	start := time.Now()
	proof, err := c.prove(ctx, input)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ProverRequestDuration.WithLabelValues("remote").Observe(time.Since(start).Seconds())
	metrics.ProverRequestsTotal.WithLabelValues("remote", result).Inc()
	return proof, err
}

func (c *RemoteProverClient) prove(ctx context.Context, input *proofinput.ProofInput) (*types.Proof, error) {
	body, contentType, err := c.encode(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/prove", body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", types.ErrProverFailure, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", types.ErrProverFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", types.ErrProverFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"deposit": input.IsDeposit(),
		}).Warn("[Prover] Remote prover returned error")
		return nil, fmt.Errorf("%w: prover service returned error (status %d): %s", types.ErrProverFailure, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result proveResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", types.ErrProverFailure, err)
	}
	if result.Error != "" || (result.Message != "" && result.Proof == "") {
		return nil, fmt.Errorf("%w: %s", types.ErrProverFailure, strings.TrimSpace(result.Error+" "+result.Message))
	}
	if result.Proof == "" {
		return nil, fmt.Errorf("%w: prover returned an empty proof", types.ErrProverFailure)
	}
	proofBytes, err := types.ParseProofHex(result.Proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}
	if len(proofBytes) == 0 {
		return nil, fmt.Errorf("%w: prover returned an empty proof", types.ErrProverFailure)
	}
	return &types.Proof{Bytes: proofBytes}, nil
}

func (c *RemoteProverClient) encode(input *proofinput.ProofInput) (io.Reader, string, error) {
	switch c.Encoding {
	case EncodingForm:
		return strings.NewReader(input.Form().Encode()), "application/x-www-form-urlencoded", nil
	case EncodingJSON:
		data, err := json.Marshal(input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "", fmt.Errorf("unknown prover encoding %q", c.Encoding)
	}
}
