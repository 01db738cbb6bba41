package clients

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/config"
	"twister-backend/internal/metrics"
	"twister-backend/internal/proofinput"
	"twister-backend/internal/types"
)

// CommandRunner runs an external program in dir and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// LocalProver drives nargo in a Noir circuit directory: Prover.toml in,
// proofs/<package>.proof and Verifier.toml out.
type LocalProver struct {
	nargo        string
	circuitDir   string
	pkg          string
	publicInputs []string
	runner       CommandRunner
	logger       *logrus.Logger

	// nargo reads and writes fixed file names in circuitDir
	mu sync.Mutex
}

// NewLocalProver creates a prover from config. A nil runner executes the real binary.
func NewLocalProver(cfg config.LocalProverConfig, runner CommandRunner, logger *logrus.Logger) *LocalProver {
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalProver{
		nargo:        cfg.NargoBin,
		circuitDir:   cfg.CircuitDir,
		pkg:          cfg.Package,
		publicInputs: cfg.PublicInputs,
		runner:       runner,
		logger:       logger,
	}
}

// Prove writes Prover.toml, runs `nargo prove` and reads the artifacts back.
func (p *LocalProver) Prove(ctx context.Context, input *proofinput.ProofInput) (*types.Proof, error) {
	start := time.Now()
	proof, err := p.prove(ctx, input)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ProverRequestDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())
	metrics.ProverRequestsTotal.WithLabelValues("local", result).Inc()
	return proof, err
}

func (p *LocalProver) prove(ctx context.Context, input *proofinput.ProofInput) (*types.Proof, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := input.ProverTOML()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}
	proverPath := filepath.Join(p.circuitDir, "Prover.toml")
	if err := os.WriteFile(proverPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: failed to write Prover.toml: %v", types.ErrProverFailure, err)
	}
	// Prover.toml holds the secret
	defer os.Remove(proverPath)

	out, err := p.runner.Run(ctx, p.circuitDir, p.nargo, "prove")
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"circuit_dir": p.circuitDir,
			"error":       err.Error(),
		}).Warn("[Prover] nargo prove failed")
		return nil, fmt.Errorf("%w: nargo prove: %v: %s", types.ErrProverFailure, err, strings.TrimSpace(string(out)))
	}

	rawProof, err := os.ReadFile(filepath.Join(p.circuitDir, "proofs", p.pkg+".proof"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read proof: %v", types.ErrProverFailure, err)
	}
	proofBytes, err := types.ParseProofHex(string(rawProof))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}
	if len(proofBytes) == 0 {
		return nil, fmt.Errorf("%w: nargo produced an empty proof", types.ErrProverFailure)
	}

	publicInputs, err := p.readPublicInputs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProverFailure, err)
	}
	return &types.Proof{Bytes: proofBytes, PublicInputs: publicInputs}, nil
}

// readPublicInputs flattens Verifier.toml in the configured key order.
func (p *LocalProver) readPublicInputs() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(p.circuitDir, "Verifier.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read Verifier.toml: %w", err)
	}
	var values map[string]interface{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse Verifier.toml: %w", err)
	}

	var out []string
	for _, key := range p.publicInputs {
		v, ok := values[key]
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case []interface{}:
			for _, item := range tv {
				out = append(out, fmt.Sprint(item))
			}
		default:
			out = append(out, fmt.Sprint(tv))
		}
	}
	return out, nil
}
