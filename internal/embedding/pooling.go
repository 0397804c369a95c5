package embedding

// Pooling modes for ONNX model outputs.
const (
	// PoolingNone expects the model to emit a pooled [1, dims] sentence vector.
	PoolingNone = "none"
	// PoolingMean averages [1, tokens, dims] token embeddings over unmasked positions.
	PoolingMean = "mean"
)

// ONNXOptions configures an ONNXEmbedder.
type ONNXOptions struct {
	Model             string
	ModelPath         string
	VocabPath         string
	SharedLibraryPath string
	Dimensions        int
	MaxTokens         int
	Pooling           string
	OutputName        string
}

// MeanPool averages token embeddings (row-major [tokens][dims]) over positions where mask is 1.
// A mask with no set positions yields the zero vector.
func MeanPool(tokens []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 || (t+1)*dims > len(tokens) {
			continue
		}
		row := tokens[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] /= n
	}
	return out
}
