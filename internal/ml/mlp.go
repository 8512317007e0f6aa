package ml

import (
	"math"
	"math/rand/v2"
	"slices"
)

const (
	mlpBatchSize      = 200
	mlpTol            = 1e-4
	mlpIterNoChange   = 10
	mlpMinLearnRate   = 1e-6
	adamBeta1         = 0.9
	adamBeta2         = 0.999
	adamEpsilon       = 1e-8
	mlpAdaptiveFactor = 5
)

// MLPClassifier is a fully connected network with a softmax output trained
// by Adam on the cross-entropy loss with an L2 penalty.
//
// With EarlyStopping a ValidationFraction of the training rows is held out
// and training stops once validation accuracy has not improved for ten
// epochs; the best weights seen are kept. The "adaptive" learning rate
// divides the step size by five on such a plateau instead of stopping, until
// it falls below 1e-6.
type MLPClassifier struct {
	HiddenSizes        []int
	Activation         string
	LearningRate       string
	LearningRateInit   float64
	MaxIter            int
	Alpha              float64
	ValidationFraction float64
	EarlyStopping      bool

	// Layers holds the unit count of every layer, input and output included.
	Layers []int
	// Weights is the flattened parameter vector: per layer, the in x out
	// weight matrix (row-major) followed by the out biases.
	Weights     []float64
	ClassValues []float64
	Iterations  int
}

// Fit trains the network from a seeded Glorot initialization.
func (m *MLPClassifier) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	classes, labels := classList(y)
	m.ClassValues = classes
	m.Layers = append(append([]int{len(X[0])}, m.HiddenSizes...), len(classes))
	m.Iterations = 0

	rng := rand.New(rand.NewPCG(ModelSeed, ModelSeed))
	m.initWeights(rng)
	if len(classes) < 2 {
		return nil
	}

	order := rng.Perm(len(X))
	train, val := order, []int(nil)
	if m.EarlyStopping {
		nVal := int(math.Ceil(m.ValidationFraction * float64(len(X))))
		if nVal >= 1 && nVal < len(X) {
			train, val = order[nVal:], order[:nVal]
		}
	}

	opt := newAdam(len(m.Weights), m.LearningRateInit)
	grad := make([]float64, len(m.Weights))
	best := math.Inf(-1)
	bestLoss := math.Inf(1)
	bestWeights := slices.Clone(m.Weights)
	stale := 0
	batch := min(mlpBatchSize, len(train))

	for epoch := 0; epoch < m.MaxIter; epoch++ {
		m.Iterations = epoch + 1
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		loss := 0.0
		for start := 0; start < len(train); start += batch {
			rows := train[start:min(start+batch, len(train))]
			loss += m.gradient(X, labels, rows, grad) * float64(len(rows))
			opt.step(m.Weights, grad)
		}
		loss /= float64(len(train))

		improved := false
		if val != nil {
			score := m.accuracy(X, labels, val)
			improved = score >= best+mlpTol
			if score > best {
				best = score
				copy(bestWeights, m.Weights)
			}
		} else {
			improved = loss <= bestLoss-mlpTol
			bestLoss = math.Min(bestLoss, loss)
		}
		if improved {
			stale = 0
			continue
		}
		stale++
		if stale <= mlpIterNoChange {
			continue
		}
		if m.LearningRate == "adaptive" && opt.lr/mlpAdaptiveFactor >= mlpMinLearnRate {
			opt.lr /= mlpAdaptiveFactor
			stale = 0
			continue
		}
		break
	}
	if val != nil {
		copy(m.Weights, bestWeights)
	}
	return nil
}

func (m *MLPClassifier) initWeights(rng *rand.Rand) {
	size := 0
	for l := 0; l+1 < len(m.Layers); l++ {
		size += m.Layers[l]*m.Layers[l+1] + m.Layers[l+1]
	}
	m.Weights = make([]float64, size)
	off := 0
	for l := 0; l+1 < len(m.Layers); l++ {
		in, out := m.Layers[l], m.Layers[l+1]
		factor := 6.0
		if m.Activation == "logistic" {
			factor = 2
		}
		bound := math.Sqrt(factor / float64(in+out))
		for i := 0; i < in*out+out; i++ {
			m.Weights[off+i] = (2*rng.Float64() - 1) * bound
		}
		off += in*out + out
	}
}

// forward returns the activations of every layer for one row.
func (m *MLPClassifier) forward(row []float64) [][]float64 {
	acts := make([][]float64, len(m.Layers))
	acts[0] = row
	off := 0
	last := len(m.Layers) - 2
	for l := 0; l <= last; l++ {
		in, out := m.Layers[l], m.Layers[l+1]
		w := m.Weights[off : off+in*out]
		b := m.Weights[off+in*out : off+in*out+out]
		z := slices.Clone(b)
		for i, a := range acts[l] {
			if a == 0 {
				continue
			}
			wi := w[i*out : (i+1)*out]
			for j := range z {
				z[j] += a * wi[j]
			}
		}
		if l == last {
			softmax(z)
		} else {
			m.activate(z)
		}
		acts[l+1] = z
		off += in*out + out
	}
	return acts
}

// gradient fills grad with the mean loss gradient over rows and returns the
// mean penalized loss.
func (m *MLPClassifier) gradient(X [][]float64, labels []int, rows []int, grad []float64) float64 {
	clear(grad)
	n := float64(len(rows))
	loss := 0.0
	offsets := m.offsets()
	for _, r := range rows {
		acts := m.forward(X[r])
		out := acts[len(acts)-1]
		loss -= math.Log(math.Max(out[labels[r]], 1e-15))

		delta := slices.Clone(out)
		delta[labels[r]]--
		for l := len(m.Layers) - 2; l >= 0; l-- {
			in, o := m.Layers[l], m.Layers[l+1]
			off := offsets[l]
			gw := grad[off : off+in*o]
			gb := grad[off+in*o : off+in*o+o]
			for j, d := range delta {
				gb[j] += d
			}
			for i, a := range acts[l] {
				if a == 0 {
					continue
				}
				row := gw[i*o : (i+1)*o]
				for j, d := range delta {
					row[j] += a * d
				}
			}
			if l == 0 {
				break
			}
			w := m.Weights[off : off+in*o]
			prev := make([]float64, in)
			for i := range prev {
				s := 0.0
				wi := w[i*o : (i+1)*o]
				for j, d := range delta {
					s += wi[j] * d
				}
				prev[i] = s * m.derivative(acts[l][i])
			}
			delta = prev
		}
	}

	penalty := 0.0
	for l := 0; l+1 < len(m.Layers); l++ {
		in, o := m.Layers[l], m.Layers[l+1]
		off := offsets[l]
		for i := off; i < off+in*o; i++ {
			penalty += m.Weights[i] * m.Weights[i]
			grad[i] += m.Alpha * m.Weights[i]
		}
		for i := off; i < off+in*o+o; i++ {
			grad[i] /= n
		}
	}
	return loss/n + 0.5*m.Alpha*penalty/n
}

func (m *MLPClassifier) offsets() []int {
	offs := make([]int, len(m.Layers)-1)
	off := 0
	for l := range offs {
		offs[l] = off
		off += m.Layers[l]*m.Layers[l+1] + m.Layers[l+1]
	}
	return offs
}

func (m *MLPClassifier) accuracy(X [][]float64, labels []int, rows []int) float64 {
	hit := 0
	for _, r := range rows {
		acts := m.forward(X[r])
		if argmax(acts[len(acts)-1]) == labels[r] {
			hit++
		}
	}
	return float64(hit) / float64(len(rows))
}

func (m *MLPClassifier) activate(z []float64) {
	for i, v := range z {
		switch m.Activation {
		case "tanh":
			z[i] = math.Tanh(v)
		case "logistic":
			z[i] = 1 / (1 + math.Exp(-v))
		default:
			z[i] = math.Max(v, 0)
		}
	}
}

// derivative is the activation slope expressed in terms of its output a.
func (m *MLPClassifier) derivative(a float64) float64 {
	switch m.Activation {
	case "tanh":
		return 1 - a*a
	case "logistic":
		return a * (1 - a)
	default:
		if a > 0 {
			return 1
		}
		return 0
	}
}

func softmax(z []float64) {
	hi := slices.Max(z)
	s := 0.0
	for i, v := range z {
		z[i] = math.Exp(v - hi)
		s += z[i]
	}
	for i := range z {
		z[i] /= s
	}
}

// Classes returns the sorted class values seen during Fit.
func (m *MLPClassifier) Classes() []float64 { return m.ClassValues }

// Predict returns the most probable class of each row.
func (m *MLPClassifier) Predict(X [][]float64) []float64 {
	return predictFromProba(m.ClassValues, m.PredictProba(X))
}

// PredictProba returns the softmax output of each row.
func (m *MLPClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(m.ClassValues) < 2 {
			out[i] = []float64{1}
			continue
		}
		acts := m.forward(row)
		out[i] = acts[len(acts)-1]
	}
	return out
}

type adam struct {
	lr  float64
	t   int
	mom []float64
	vel []float64
}

func newAdam(n int, lr float64) *adam {
	return &adam{lr: lr, mom: make([]float64, n), vel: make([]float64, n)}
}

func (a *adam) step(params, grad []float64) {
	a.t++
	lr := a.lr * math.Sqrt(1-math.Pow(adamBeta2, float64(a.t))) / (1 - math.Pow(adamBeta1, float64(a.t)))
	for i, g := range grad {
		a.mom[i] = adamBeta1*a.mom[i] + (1-adamBeta1)*g
		a.vel[i] = adamBeta2*a.vel[i] + (1-adamBeta2)*g*g
		params[i] -= lr * a.mom[i] / (math.Sqrt(a.vel[i]) + adamEpsilon)
	}
}
