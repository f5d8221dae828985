package forecast

// Model predicts next-hour temperature from one record's features. It is a
// ridge trend plus a forest fitted on the trend's residuals, both working on
// features standardized by the training-split scaler.
type Model struct {
	scaler *Scaler
	trend  *trend
	forest *forest
}

// ModelConfig controls the residual forest.
type ModelConfig struct {
	Trees    int
	Seed     uint64
	MaxDepth int
	MinLeaf  int
}

func (c ModelConfig) withDefaults() ModelConfig {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 32
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 1
	}
	return c
}

// Fit trains a model on raw (unscaled) feature rows and labels.
func Fit(x [][]float64, y []float64, cfg ModelConfig) (*Model, error) {
	cfg = cfg.withDefaults()

	scaler := fitScaler(x)
	scaled := scaler.transformAll(x)

	tr, err := fitTrend(scaled, y)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, len(y))
	for i, row := range scaled {
		residuals[i] = y[i] - tr.predict(row)
	}

	f := fitForest(scaled, residuals, cfg.Trees, cfg.Seed, treeParams{maxDepth: cfg.MaxDepth, minLeaf: cfg.MinLeaf})
	return &Model{scaler: scaler, trend: tr, forest: f}, nil
}

// Predict returns the estimate for one raw feature row.
func (m *Model) Predict(x []float64) float64 {
	z := m.scaler.Transform(x)
	return m.trend.predict(z) + m.forest.predict(z)
}

// Scaler exposes the fitted standardization statistics.
func (m *Model) Scaler() *Scaler { return m.scaler }
