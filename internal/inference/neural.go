package inference

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Activation and output names understood by the network evaluator.
const (
	ActivationNone      = ""
	ActivationReLU      = "relu"
	ActivationLeakyReLU = "leaky_relu"

	NetworkSigmoid = "sigmoid"
	NetworkLinear  = "linear"
)

const defaultNormEps = 1e-5

// BatchNorm holds running statistics of an inference-mode batch norm.
type BatchNorm struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
	Mean  []float64 `json:"mean"`
	Var   []float64 `json:"var"`
	Eps   float64   `json:"eps"`
}

// Layer is a dense layer optionally followed by batch norm and an activation.
// Weight is laid out output-major: Weight[o][i].
type Layer struct {
	Weight     [][]float64 `json:"weight"`
	Bias       []float64   `json:"bias"`
	Norm       *BatchNorm  `json:"norm,omitempty"`
	Activation string      `json:"activation,omitempty"`
	Slope      float64     `json:"slope,omitempty"`
}

func (l *Layer) in() int {
	if len(l.Weight) == 0 {
		return 0
	}
	return len(l.Weight[0])
}

func (l *Layer) out() int { return len(l.Weight) }

func (l *Layer) validate(in int) error {
	if l.out() == 0 {
		return fmt.Errorf("%w: empty layer", ErrInvalidArtifact)
	}
	for _, row := range l.Weight {
		if len(row) != in {
			return fmt.Errorf("%w: layer expects %d inputs, got row of %d", ErrInvalidArtifact, in, len(row))
		}
	}
	if l.Bias != nil && len(l.Bias) != l.out() {
		return fmt.Errorf("%w: bias width %d, want %d", ErrInvalidArtifact, len(l.Bias), l.out())
	}
	if n := l.Norm; n != nil {
		w := l.out()
		if len(n.Gamma) != w || len(n.Beta) != w || len(n.Mean) != w || len(n.Var) != w {
			return fmt.Errorf("%w: batch norm width mismatch", ErrInvalidArtifact)
		}
		if n.Eps <= 0 {
			n.Eps = defaultNormEps
		}
	}
	switch l.Activation {
	case ActivationNone, ActivationReLU:
	case ActivationLeakyReLU:
		if l.Slope == 0 {
			l.Slope = 0.01
		}
	default:
		return fmt.Errorf("%w: unknown activation %q", ErrInvalidArtifact, l.Activation)
	}
	return nil
}

func (l *Layer) forward(x []float64) []float64 {
	y := make([]float64, l.out())
	for o, row := range l.Weight {
		var s float64
		for i, w := range row {
			s += w * x[i]
		}
		if l.Bias != nil {
			s += l.Bias[o]
		}
		if n := l.Norm; n != nil {
			s = n.Gamma[o]*(s-n.Mean[o])/math.Sqrt(n.Var[o]+n.Eps) + n.Beta[o]
		}
		switch l.Activation {
		case ActivationReLU:
			s = math.Max(0, s)
		case ActivationLeakyReLU:
			if s < 0 {
				s *= l.Slope
			}
		}
		y[o] = s
	}
	return y
}

// Block is a residual block computing relu(layers(x) + x).
type Block struct {
	Layers []Layer `json:"layers"`
}

// Network is a frozen feed-forward residual network evaluated in
// inference mode: dropout is the identity and batch norm uses running
// statistics.
type Network struct {
	InputDim  int     `json:"input_dim"`
	Embedding *Layer  `json:"embedding,omitempty"`
	Blocks    []Block `json:"blocks"`
	Head      []Layer `json:"head"`
	Output    string  `json:"output"`
}

// LoadNetwork decodes and validates a network artifact.
func LoadNetwork(r io.Reader) (*Network, error) {
	var n Network
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	if err := n.init(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Network) init() error {
	if n.InputDim <= 0 {
		return fmt.Errorf("%w: input_dim must be positive", ErrInvalidArtifact)
	}
	switch n.Output {
	case "":
		n.Output = NetworkLinear
	case NetworkSigmoid, NetworkLinear:
	default:
		return fmt.Errorf("%w: unknown output %q", ErrInvalidArtifact, n.Output)
	}
	if len(n.Head) == 0 {
		return fmt.Errorf("%w: network has no head", ErrInvalidArtifact)
	}

	width := n.InputDim
	if n.Embedding != nil {
		if err := n.Embedding.validate(width); err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
		width = n.Embedding.out()
	}
	for bi := range n.Blocks {
		if len(n.Blocks[bi].Layers) == 0 {
			return fmt.Errorf("%w: block %d has no layers", ErrInvalidArtifact, bi)
		}
		in := width
		for li := range n.Blocks[bi].Layers {
			l := &n.Blocks[bi].Layers[li]
			if err := l.validate(width); err != nil {
				return fmt.Errorf("block %d layer %d: %w", bi, li, err)
			}
			width = l.out()
		}
		if width != in {
			return fmt.Errorf("%w: block %d maps %d to %d, residual needs equal widths", ErrInvalidArtifact, bi, in, width)
		}
	}
	for li := range n.Head {
		if err := n.Head[li].validate(width); err != nil {
			return fmt.Errorf("head layer %d: %w", li, err)
		}
		width = n.Head[li].out()
	}
	if width != 1 {
		return fmt.Errorf("%w: network emits %d values, want 1", ErrInvalidArtifact, width)
	}
	return nil
}

// Forward evaluates one input row and returns the scalar output, passed
// through a sigmoid for probability networks.
func (n *Network) Forward(x []float64) (float64, error) {
	if len(x) != n.InputDim {
		return 0, fmt.Errorf("%w: got %d columns, want %d", ErrWidthMismatch, len(x), n.InputDim)
	}
	h := x
	if n.Embedding != nil {
		h = n.Embedding.forward(h)
	}
	for bi := range n.Blocks {
		out := h
		for li := range n.Blocks[bi].Layers {
			out = n.Blocks[bi].Layers[li].forward(out)
		}
		for i := range out {
			out[i] = math.Max(0, out[i]+h[i])
		}
		h = out
	}
	for li := range n.Head {
		h = n.Head[li].forward(h)
	}
	y := h[0]
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%w: non-finite network output", ErrInvalidArtifact)
	}
	if n.Output == NetworkSigmoid {
		y = 1 / (1 + math.Exp(-y))
	}
	return y, nil
}
